package advice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"ask-kyra/internal/logging"
)

const maxRetryWait = 5 * time.Second

// KyraClient calls the Ky'ra student-query endpoint. Both fields travel as
// query parameters on a POST with no body.
type KyraClient struct {
	url  string
	http *resty.Client
}

type KyraOptions struct {
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
}

func NewKyra(url string, opts KyraOptions) *KyraClient {
	c := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(maxRetryWait).
		AddRetryCondition(retryable)
	return &KyraClient{url: url, http: c}
}

// retryable retries transport failures and gateway-style statuses only.
func retryable(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	switch r.StatusCode() {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *KyraClient) Ask(ctx context.Context, studentID, query string) Result {
	logger := logging.FromContext(ctx)
	start := time.Now()

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"student_id": strings.TrimSpace(studentID),
			"query":      strings.TrimSpace(query),
		}).
		Post(c.url)
	if err != nil {
		logger.Warn(ctx, "kyra call failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return transportFailure(err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		logger.Warn(ctx, "kyra returned non-200",
			zap.Int("status", resp.StatusCode()),
			zap.Duration("elapsed", time.Since(start)))
		return Result{Kind: KindHTTPError, StatusCode: resp.StatusCode(), Body: string(body)}
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Warn(ctx, "kyra returned undecodable body", zap.Error(err))
		return transportFailure(fmt.Errorf("decode response: %w", err))
	}
	logger.Debug(ctx, "kyra answered", zap.Duration("elapsed", time.Since(start)))

	switch v := payload["response"].(type) {
	case nil:
		return answer("", "kyra")
	case string:
		return Result{Kind: KindAnswer, Text: v, Model: "kyra"}
	default:
		return Result{Kind: KindAnswer, Text: fmt.Sprint(v), Model: "kyra"}
	}
}
