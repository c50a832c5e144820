package desk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ask-kyra/internal/advice"
	"ask-kyra/internal/analytics"
	"ask-kyra/internal/auth"
	"ask-kyra/internal/history"
	"ask-kyra/internal/logging"
	"ask-kyra/internal/mapping"
	"ask-kyra/internal/notify"
	"ask-kyra/internal/pending"
	"ask-kyra/internal/storage"
)

// User-facing messages.
const (
	MsgQueryRequired   = "Please enter both a valid email and a query."
	MsgInvalidEmail    = "Please enter a valid email address (e.g., student@college.edu)."
	MsgEmailRequired   = "Enter your email to get started!"
	MsgTitleRequired   = "Please enter a project title."
	MsgMissingColumns  = "CSV must contain 'student_id' and 'project_title' columns."
	MsgUploadExpired   = "This upload has expired. Please upload the file again."
	MsgNoResponse      = "No response available."
	msgProcessingError = "Error processing file: "
)

// ErrForbidden is returned when a flow is not open to the email's role.
var ErrForbidden = errors.New("forbidden for this role")

// ValidationError carries a message meant to be shown to the user as is.
// Nothing is written when one is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

type Deps struct {
	Store    storage.Store
	Advice   advice.Client
	Auth     *auth.Service
	Chats    *history.Manager
	Pending  pending.Repository
	Notifier notify.Notifier
	Now      func() time.Time
}

// Service runs the page flows shared by the web handlers, the CLI and the MCP tools.
type Service struct {
	store    storage.Store
	advisor  advice.Client
	auth     *auth.Service
	chats    *history.Manager
	pending  pending.Repository
	notifier notify.Notifier
	now      func() time.Time
	newID    func() string
}

func New(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		advisor:  d.Advice,
		auth:     d.Auth,
		chats:    d.Chats,
		pending:  d.Pending,
		notifier: d.Notifier,
		now:      d.Now,
		newID:    uuid.NewString,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.chats == nil {
		s.chats = history.NewManager(0, 0)
	}
	if s.notifier == nil {
		s.notifier = notify.LogNotifier{}
	}
	return s
}

func (s *Service) Identify(email string) auth.Identity {
	return s.auth.Classify(email)
}

// Exchange is the outcome of one submitted question.
type Exchange struct {
	Entry  history.Entry
	Result advice.Result
}

// SubmitQuery asks the advice service, stores the exchange and adds it to the
// session log. An advice failure is not an error: its text is stored and shown.
func (s *Service) SubmitQuery(ctx context.Context, session, email, question string) (Exchange, error) {
	if email == "" || strings.TrimSpace(question) == "" {
		return Exchange{}, invalid(MsgQueryRequired)
	}
	if !auth.ValidEmail(email) {
		return Exchange{}, invalid(MsgInvalidEmail)
	}
	logger := logging.FromContext(ctx)
	question = storage.NormalizeNewlines(question)

	timestamp := storage.FormatTimestamp(s.now())
	res := s.advisor.Ask(ctx, email, question)
	if res.Failed() {
		logger.Warn(ctx, "advice call failed", zap.String("kind", res.Kind.String()), zap.Int("status", res.StatusCode))
	}
	rec := storage.QueryRecord{
		StudentID: email,
		Query:     question,
		Timestamp: timestamp,
		Response:  storage.NormalizeNewlines(res.Display()),
	}
	if err := s.store.AppendQuery(ctx, rec); err != nil {
		return Exchange{}, fmt.Errorf("save query: %w", err)
	}
	entry := history.Entry{
		StudentID: rec.StudentID,
		Query:     rec.Query,
		Response:  rec.Response,
		Timestamp: rec.Timestamp,
		Failed:    res.Failed(),
	}
	s.chats.Append(session, entry)
	logger.Info(ctx, "query saved", zap.String("student_id", email), zap.Bool("failed", res.Failed()))
	return Exchange{Entry: entry, Result: res}, nil
}

// SubmitProject stores one project title for a student.
func (s *Service) SubmitProject(ctx context.Context, email, title string) (storage.ProjectRecord, error) {
	if email == "" {
		return storage.ProjectRecord{}, invalid(MsgEmailRequired)
	}
	if s.auth.IsAdmin(email) {
		return storage.ProjectRecord{}, fmt.Errorf("submit project: %w", ErrForbidden)
	}
	if strings.TrimSpace(title) == "" {
		return storage.ProjectRecord{}, invalid(MsgTitleRequired)
	}
	rec := storage.ProjectRecord{
		StudentID:    email,
		ProjectTitle: storage.NormalizeNewlines(title),
		Timestamp:    storage.FormatTimestamp(s.now()),
	}
	if err := s.store.AppendProjects(ctx, []storage.ProjectRecord{rec}); err != nil {
		return storage.ProjectRecord{}, fmt.Errorf("save project: %w", err)
	}
	logging.FromContext(ctx).Info(ctx, "project saved", zap.String("student_id", email))
	return rec, nil
}

// PreviewMapping parses an admin upload and parks it until ConfirmMapping.
func (s *Service) PreviewMapping(ctx context.Context, email, filename string, r io.Reader) (pending.Upload, error) {
	if !s.auth.IsAdmin(email) {
		return pending.Upload{}, fmt.Errorf("preview mapping: %w", ErrForbidden)
	}
	batch, err := parseUpload(r)
	if err != nil {
		return pending.Upload{}, err
	}
	up := pending.Upload{
		ID:       s.newID(),
		Uploader: strings.ToLower(strings.TrimSpace(email)),
		Filename: filename,
		Batch:    batch,
	}
	if err := s.pending.Put(up); err != nil {
		return pending.Upload{}, fmt.Errorf("park upload: %w", err)
	}
	logging.FromContext(ctx).Info(ctx, "mapping previewed",
		zap.String("upload_id", up.ID), zap.Int("rows", len(batch.Rows)))
	return up, nil
}

// ConfirmMapping appends a previewed upload with one shared timestamp and
// returns the number of rows written.
func (s *Service) ConfirmMapping(ctx context.Context, email, token string) (int, error) {
	if !s.auth.IsAdmin(email) {
		return 0, fmt.Errorf("confirm mapping: %w", ErrForbidden)
	}
	up, ok, err := s.pending.Take(token)
	if err != nil {
		return 0, fmt.Errorf("load upload: %w", err)
	}
	if !ok || up.Batch == nil {
		return 0, invalid(MsgUploadExpired)
	}
	if up.Uploader != strings.ToLower(strings.TrimSpace(email)) {
		return 0, fmt.Errorf("confirm mapping of %s: %w", up.Uploader, ErrForbidden)
	}
	n, err := s.appendBatch(ctx, up.Batch)
	if err != nil {
		return 0, err
	}
	msg := fmt.Sprintf("%s saved a student mapping: %d rows from %s", email, n, up.Filename)
	if err := s.notifier.Notify(ctx, msg); err != nil {
		logging.FromContext(ctx).Warn(ctx, "admin notification failed", zap.Error(err))
	}
	return n, nil
}

// ImportMapping parses and appends a mapping file without a preview step.
func (s *Service) ImportMapping(ctx context.Context, r io.Reader) (int, error) {
	batch, err := parseUpload(r)
	if err != nil {
		return 0, err
	}
	return s.appendBatch(ctx, batch)
}

func (s *Service) appendBatch(ctx context.Context, batch *mapping.Batch) (int, error) {
	recs := batch.Records(storage.FormatTimestamp(s.now()))
	if err := s.store.AppendProjects(ctx, recs); err != nil {
		return 0, fmt.Errorf("save mapping: %w", err)
	}
	logging.FromContext(ctx).Info(ctx, "mapping saved", zap.Int("rows", len(recs)))
	return len(recs), nil
}

func parseUpload(r io.Reader) (*mapping.Batch, error) {
	batch, err := mapping.Parse(r)
	switch {
	case errors.Is(err, mapping.ErrMissingColumns):
		return nil, invalid(MsgMissingColumns)
	case err != nil:
		return nil, invalid(msgProcessingError + err.Error())
	}
	return batch, nil
}

// QueryHistory returns the stored exchanges of email in file order.
func (s *Service) QueryHistory(ctx context.Context, email string) ([]storage.QueryRecord, error) {
	all, err := s.store.LoadQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load queries: %w", err)
	}
	recs := storage.QueriesFor(all, email)
	for i := range recs {
		if recs[i].Response == "" {
			recs[i].Response = MsgNoResponse
		}
	}
	return recs, nil
}

// ProjectHistory returns the stored project rows of email in file order.
func (s *Service) ProjectHistory(ctx context.Context, email string) ([]storage.ProjectRecord, error) {
	all, err := s.store.LoadProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	return storage.ProjectsFor(all, email), nil
}

func (s *Service) SessionLog(session string) []history.Entry {
	return s.chats.Get(session)
}

// Digest summarizes the activity of day.
func (s *Service) Digest(ctx context.Context, day time.Time) (*analytics.DailyStats, error) {
	queries, err := s.store.LoadQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load queries: %w", err)
	}
	projects, err := s.store.LoadProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	return analytics.Summarize(queries, projects, day), nil
}

// SendDigest sends today's digest to the admin.
func (s *Service) SendDigest(ctx context.Context) error {
	stats, err := s.Digest(ctx, s.now())
	if err != nil {
		return err
	}
	return s.notifier.Notify(ctx, stats.GenerateReportSummary())
}
