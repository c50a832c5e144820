package advice

import (
	"context"
	"fmt"
	"strings"
)

// NoResponseText is shown when the service answered 200 without a reply.
const NoResponseText = "No response from Ky’ra."

type Kind int

const (
	KindAnswer Kind = iota
	KindHTTPError
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindAnswer:
		return "answer"
	case KindHTTPError:
		return "http_error"
	case KindTransport:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of one advice call. Callers that only need the text
// to store and show use Display; Failed tells a real answer from a failure.
type Result struct {
	Kind       Kind
	Text       string
	StatusCode int
	Body       string
	Err        error
	Model      string
}

func (r Result) Failed() bool { return r.Kind != KindAnswer }

func (r Result) Display() string {
	switch r.Kind {
	case KindHTTPError:
		return fmt.Sprintf("Error: %d - %s", r.StatusCode, r.Body)
	case KindTransport:
		msg := "unknown error"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		return "API call failed: " + msg
	default:
		return r.Text
	}
}

// Client asks an advice backend a student's question. Ask never returns an
// error; failures are reported through Result.Kind.
type Client interface {
	Ask(ctx context.Context, studentID, query string) Result
}

func answer(text, model string) Result {
	if text == "" {
		text = NoResponseText
	}
	return Result{Kind: KindAnswer, Text: text, Model: model}
}

func transportFailure(err error) Result {
	return Result{Kind: KindTransport, Err: err}
}

// IsFailureText reports whether a stored response string came from a failed
// call rather than a real answer.
func IsFailureText(s string) bool {
	return strings.HasPrefix(s, "Error: ") || strings.HasPrefix(s, "API call failed: ")
}
