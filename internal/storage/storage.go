package storage

import (
	"context"
	"strings"
	"time"
)

// TimestampLayout is the on-disk timestamp format, DD-MM-YYYY HH:MM.
const TimestampLayout = "02-01-2006 15:04"

// Column names of the two stores.
const (
	ColStudentID    = "student_id"
	ColQuery        = "Query"
	ColTimestamp    = "Timestamp"
	ColResponse     = "response"
	ColProjectTitle = "project_title"
)

var (
	QueryHeader   = []string{ColStudentID, ColQuery, ColTimestamp, ColResponse}
	ProjectHeader = []string{ColStudentID, ColProjectTitle, ColTimestamp}
)

// QueryRecord is one question sent to the advice service and the reply that was shown.
type QueryRecord struct {
	StudentID string `json:"student_id"`
	Query     string `json:"query"`
	Timestamp string `json:"timestamp"`
	Response  string `json:"response"`
}

// Column is an extra name/value pair carried through from an uploaded mapping.
type Column struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProjectRecord maps a student to a project title.
type ProjectRecord struct {
	StudentID    string   `json:"student_id"`
	ProjectTitle string   `json:"project_title"`
	Timestamp    string   `json:"timestamp"`
	Extra        []Column `json:"extra,omitempty"`
}

// Store persists both append-only tables.
// Load* return rows in append order. Implementations must be safe for concurrent use;
// a batch passed to AppendProjects is written in one step.
type Store interface {
	AppendQuery(ctx context.Context, rec QueryRecord) error
	AppendProjects(ctx context.Context, recs []ProjectRecord) error
	LoadQueries(ctx context.Context) ([]QueryRecord, error)
	LoadProjects(ctx context.Context) ([]ProjectRecord, error)
	Close() error
}

// NormalizeNewlines turns CRLF and lone CR line breaks into LF. Stored text is
// always LF-terminated: a CSV reader drops the CR of a CRLF even inside quotes.
func NormalizeNewlines(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func (r QueryRecord) normalized() QueryRecord {
	r.StudentID = NormalizeNewlines(r.StudentID)
	r.Query = NormalizeNewlines(r.Query)
	r.Timestamp = NormalizeNewlines(r.Timestamp)
	r.Response = NormalizeNewlines(r.Response)
	return r
}

func (r ProjectRecord) normalized() ProjectRecord {
	r.StudentID = NormalizeNewlines(r.StudentID)
	r.ProjectTitle = NormalizeNewlines(r.ProjectTitle)
	r.Timestamp = NormalizeNewlines(r.Timestamp)
	if r.Extra != nil {
		extra := make([]Column, len(r.Extra))
		for i, c := range r.Extra {
			extra[i] = Column{Name: NormalizeNewlines(c.Name), Value: NormalizeNewlines(c.Value)}
		}
		r.Extra = extra
	}
	return r
}

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.Local)
}

// QueriesFor returns the rows whose student_id equals email exactly.
func QueriesFor(recs []QueryRecord, email string) []QueryRecord {
	var out []QueryRecord
	for _, r := range recs {
		if r.StudentID == email {
			out = append(out, r)
		}
	}
	return out
}

// ProjectsFor returns the rows whose student_id equals email exactly.
func ProjectsFor(recs []ProjectRecord, email string) []ProjectRecord {
	var out []ProjectRecord
	for _, r := range recs {
		if r.StudentID == email {
			out = append(out, r)
		}
	}
	return out
}
