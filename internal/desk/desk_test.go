package desk

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ask-kyra/internal/advice"
	"ask-kyra/internal/auth"
	"ask-kyra/internal/history"
	"ask-kyra/internal/pending"
	"ask-kyra/internal/storage"
)

type fakeAdvice struct {
	res   advice.Result
	calls int
	mu    sync.Mutex
}

func (f *fakeAdvice) Ask(ctx context.Context, studentID, query string) advice.Result {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.res
}

type fakeNotifier struct{ sent []string }

func (f *fakeNotifier) Notify(ctx context.Context, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

type fixture struct {
	svc      *Service
	store    *storage.CSVStore
	advice   *fakeAdvice
	notifier *fakeNotifier
	dir      string
}

var fixedNow = time.Date(2025, 6, 15, 14, 5, 0, 0, time.Local)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewCSVStore(filepath.Join(dir, "queries.csv"), filepath.Join(dir, "projects.csv"))
	require.NoError(t, err)
	authSvc, err := auth.NewWithRepo(nil, nil, "college")
	require.NoError(t, err)
	pend, err := pending.NewFileRepository(filepath.Join(dir, "pending.json"), time.Hour)
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		advice:   &fakeAdvice{res: advice.Result{Kind: advice.KindAnswer, Text: "Start with your skills section."}},
		notifier: &fakeNotifier{},
		dir:      dir,
	}
	f.svc = New(Deps{
		Store:    store,
		Advice:   f.advice,
		Auth:     authSvc,
		Chats:    history.NewManager(0, 0),
		Pending:  pend,
		Notifier: f.notifier,
		Now:      func() time.Time { return fixedNow },
	})
	return f
}

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	return ve.Message
}

func TestSubmitQuery_SavesAndLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ex, err := f.svc.SubmitQuery(ctx, "sess", "a@college.edu", "How do I write my resume?")
	require.NoError(t, err)
	assert.Equal(t, "Start with your skills section.", ex.Entry.Response)
	assert.Equal(t, "15-06-2025 14:05", ex.Entry.Timestamp)
	assert.False(t, ex.Entry.Failed)

	recs, err := f.store.LoadQueries(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, storage.QueryRecord{
		StudentID: "a@college.edu",
		Query:     "How do I write my resume?",
		Timestamp: "15-06-2025 14:05",
		Response:  "Start with your skills section.",
	}, recs[0])
	assert.Len(t, f.svc.SessionLog("sess"), 1)
	assert.Empty(t, f.svc.SessionLog("other"))
}

func TestSubmitQuery_SessionLogMatchesStoredMultilineText(t *testing.T) {
	f := newFixture(t)
	f.advice.res = advice.Result{Kind: advice.KindAnswer, Text: "Step 1\r\nStep 2"}
	ctx := context.Background()

	ex, err := f.svc.SubmitQuery(ctx, "sess", "a@college.edu", "line one\r\nline two")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", ex.Entry.Query)
	assert.Equal(t, "Step 1\nStep 2", ex.Entry.Response)

	recs, err := f.store.LoadQueries(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ex.Entry.Query, recs[0].Query)
	assert.Equal(t, ex.Entry.Response, recs[0].Response)
}

func TestSubmitQuery_AdviceFailureIsStoredAsText(t *testing.T) {
	f := newFixture(t)
	f.advice.res = advice.Result{Kind: advice.KindHTTPError, StatusCode: 500, Body: "server error"}

	ex, err := f.svc.SubmitQuery(context.Background(), "s", "a@college.edu", "q")
	require.NoError(t, err)
	assert.True(t, ex.Entry.Failed)

	recs, err := f.store.LoadQueries(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Error: 500 - server error", recs[0].Response)
}

func TestSubmitQuery_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitQuery(ctx, "s", "", "q")
	assert.Equal(t, MsgQueryRequired, validationMessage(t, err))
	_, err = f.svc.SubmitQuery(ctx, "s", "a@b.com", "")
	assert.Equal(t, MsgQueryRequired, validationMessage(t, err))
	_, err = f.svc.SubmitQuery(ctx, "s", "not-an-email", "q")
	assert.Equal(t, MsgInvalidEmail, validationMessage(t, err))

	assert.Equal(t, 0, f.advice.calls)
	recs, err := f.store.LoadQueries(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Empty(t, f.svc.SessionLog("s"))
}

func TestSubmitProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.SubmitProject(ctx, "bob@uni.edu", "AI Chatbot")
	require.NoError(t, err)
	assert.Equal(t, "15-06-2025 14:05", rec.Timestamp)

	_, err = f.svc.SubmitProject(ctx, "bob@uni.edu", "  ")
	assert.Equal(t, MsgTitleRequired, validationMessage(t, err))

	_, err = f.svc.SubmitProject(ctx, "dean@college.edu", "Admin project")
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.ProjectHistory(ctx, "bob@uni.edu")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AI Chatbot", got[0].ProjectTitle)
}

func TestMapping_PreviewThenConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	csv := "student_id,project_title,mentor\nx@uni.edu,Vision,Dr. A\ny@uni.edu,NLP,Dr. B\n"

	up, err := f.svc.PreviewMapping(ctx, "dean@college.edu", "map.csv", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, up.Batch.Rows, 2)

	// nothing is written before confirm
	recs, err := f.store.LoadProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	n, err := f.svc.ConfirmMapping(ctx, "dean@college.edu", up.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err = f.store.LoadProjects(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, "15-06-2025 14:05", r.Timestamp)
	}
	assert.Equal(t, []storage.Column{{Name: "mentor", Value: "Dr. A"}}, recs[0].Extra)
	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0], "2 rows")

	_, err = f.svc.ConfirmMapping(ctx, "dean@college.edu", up.ID)
	assert.Equal(t, MsgUploadExpired, validationMessage(t, err))
}

func TestMapping_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PreviewMapping(ctx, "bob@uni.edu", "map.csv", strings.NewReader("student_id,project_title\n"))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.PreviewMapping(ctx, "dean@college.edu", "map.csv", strings.NewReader("student,project\na,b\n"))
	assert.Equal(t, MsgMissingColumns, validationMessage(t, err))

	_, err = f.svc.PreviewMapping(ctx, "dean@college.edu", "map.csv", strings.NewReader(""))
	assert.True(t, strings.HasPrefix(validationMessage(t, err), "Error processing file: "))

	up, err := f.svc.PreviewMapping(ctx, "dean@college.edu", "map.csv", strings.NewReader("student_id,project_title\na@b.c,T\n"))
	require.NoError(t, err)
	_, err = f.svc.ConfirmMapping(ctx, "other@college.edu", up.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestImportMapping(t *testing.T) {
	f := newFixture(t)
	n, err := f.svc.ImportMapping(context.Background(), strings.NewReader("project_title,student_id\nT1,a@b.c\nT2,d@e.f\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := f.svc.ProjectHistory(context.Background(), "d@e.f")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "T2", got[0].ProjectTitle)
}

func TestQueryHistory_FiltersAndFillsMissingResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AppendQuery(ctx, storage.QueryRecord{StudentID: "a@b.com", Query: "q1", Timestamp: "01-01-2025 10:00"}))
	require.NoError(t, f.store.AppendQuery(ctx, storage.QueryRecord{StudentID: "A@b.com", Query: "q2", Timestamp: "01-01-2025 10:01", Response: "r"}))
	require.NoError(t, f.store.AppendQuery(ctx, storage.QueryRecord{StudentID: "a@b.com", Query: "q3", Timestamp: "01-01-2025 10:02", Response: "r3"}))

	got, err := f.svc.QueryHistory(ctx, "a@b.com")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "q1", got[0].Query)
	assert.Equal(t, MsgNoResponse, got[0].Response)
	assert.Equal(t, "r3", got[1].Response)
}

func TestSendDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SubmitQuery(ctx, "s", "a@college.edu", "q")
	require.NoError(t, err)

	require.NoError(t, f.svc.SendDigest(ctx))
	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0], "Questions asked: 1")
}
