package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ask-kyra/internal/advice"
	"ask-kyra/internal/auth"
	"ask-kyra/internal/desk"
	"ask-kyra/internal/history"
	"ask-kyra/internal/logging"
	"ask-kyra/internal/pending"
	"ask-kyra/internal/storage"
)

type stubAdvice struct{ res advice.Result }

func (s stubAdvice) Ask(ctx context.Context, studentID, query string) advice.Result { return s.res }

// failingStore accepts writes and fails every read.
type failingStore struct{ err error }

func (s failingStore) AppendQuery(context.Context, storage.QueryRecord) error { return nil }
func (s failingStore) AppendProjects(context.Context, []storage.ProjectRecord) error { return nil }
func (s failingStore) LoadQueries(context.Context) ([]storage.QueryRecord, error) { return nil, s.err }
func (s failingStore) LoadProjects(context.Context) ([]storage.ProjectRecord, error) {
	return nil, s.err
}
func (s failingStore) Close() error { return nil }

func newTestServer(t *testing.T, res advice.Result) (*httptest.Server, storage.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewCSVStore(filepath.Join(dir, "queries.csv"), filepath.Join(dir, "projects.csv"))
	require.NoError(t, err)
	return newTestServerWithStore(t, res, store), store
}

func newTestServerWithStore(t *testing.T, res advice.Result, store storage.Store) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	authSvc, err := auth.NewWithRepo(nil, nil, "college")
	require.NoError(t, err)
	pend, err := pending.NewFileRepository(filepath.Join(dir, "pending.json"), time.Hour)
	require.NoError(t, err)

	svc := desk.New(desk.Deps{
		Store:   store,
		Advice:  stubAdvice{res: res},
		Auth:    authSvc,
		Chats:   history.NewManager(50, 0),
		Pending: pend,
	})
	srv := httptest.NewServer(NewRouter(NewHandler(svc, 10<<20), logging.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.String()
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, advice.Result{})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body(t, resp))
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestIndex_Greetings(t *testing.T) {
	srv, _ := newTestServer(t, advice.Result{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	assert.Contains(t, body(t, resp), "Your Internship Assistant")

	resp, err = http.Get(srv.URL + "/?email=" + url.QueryEscape("dean@college.edu"))
	require.NoError(t, err)
	page := body(t, resp)
	assert.Contains(t, page, "Welcome College Admin, Dean!")
	assert.Contains(t, page, "Upload Student Mapping")
	assert.NotContains(t, page, "Submit Your Project Title")

	resp, err = http.Get(srv.URL + "/?email=" + url.QueryEscape("bob@uni.edu"))
	require.NoError(t, err)
	page = body(t, resp)
	assert.Contains(t, page, "Hi Bob, ready to explore your internship path?")
	assert.Contains(t, page, "Submit Your Project Title")
	assert.Contains(t, page, "No chat history yet.")
}

func TestIndex_HistoryLoadFailureIs500(t *testing.T) {
	srv := newTestServerWithStore(t, advice.Result{Kind: advice.KindAnswer, Text: "x"}, failingStore{err: errors.New("disk gone")})

	resp, err := http.Get(srv.URL + "/?email=" + url.QueryEscape("s@uni.edu"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, msgInternal)
	assert.NotContains(t, page, "No chat history yet.")

	resp, err = http.PostForm(srv.URL+"/query", url.Values{"email": {"s@uni.edu"}, "question": {"q"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body(t, resp), msgInternal)

	// Anonymous pages load no history.
	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = body(t, resp)
}

func TestIndex_SampleQuestionPrefills(t *testing.T) {
	srv, _ := newTestServer(t, advice.Result{})
	q := url.Values{"email": {"bob@uni.edu"}, "sample": {"What are the best final-year projects in AI?"}}
	resp, err := http.Get(srv.URL + "/?" + q.Encode())
	require.NoError(t, err)
	assert.Contains(t, body(t, resp), ">What are the best final-year projects in AI?</textarea>")

	q.Set("sample", customQuestion)
	resp, err = http.Get(srv.URL + "/?" + q.Encode())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`placeholder="E.g., How can I prepare for my internship interview\?"></textarea>`), body(t, resp))
}

func TestSubmitQuery_ShowsReplyAndHistory(t *testing.T) {
	srv, store := newTestServer(t, advice.Result{Kind: advice.KindAnswer, Text: "Start with your skills section."})

	resp, err := http.PostForm(srv.URL+"/query", url.Values{
		"email":    {"a@college.edu"},
		"question": {"How do I write my resume?"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, msgQueryReceived)
	assert.Contains(t, page, "Start with your skills section.")
	assert.Contains(t, page, "You asked:</strong> How do I write my resume?")

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)

	recs, err := store.LoadQueries(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Start with your skills section.", recs[0].Response)
}

func TestSubmitQuery_AdviceErrorIsFlagged(t *testing.T) {
	srv, _ := newTestServer(t, advice.Result{Kind: advice.KindHTTPError, StatusCode: 500, Body: "server error"})
	resp, err := http.PostForm(srv.URL+"/query", url.Values{"email": {"a@college.edu"}, "question": {"q"}})
	require.NoError(t, err)
	page := body(t, resp)
	assert.Contains(t, page, `class="reply failed"`)
	assert.Contains(t, page, "Error: 500 - server error")
}

func TestSubmitQuery_ValidationIs400(t *testing.T) {
	srv, store := newTestServer(t, advice.Result{Kind: advice.KindAnswer, Text: "x"})

	resp, err := http.PostForm(srv.URL+"/query", url.Values{"email": {"bad-email"}, "question": {"q"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Please enter a valid email address (e.g., student@college.edu).")

	resp, err = http.PostForm(srv.URL+"/query", url.Values{"email": {"a@b.com"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Please enter both a valid email and a query.")

	recs, err := store.LoadQueries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSubmitProject(t *testing.T) {
	srv, _ := newTestServer(t, advice.Result{})

	resp, err := http.PostForm(srv.URL+"/project", url.Values{"email": {"bob@uni.edu"}, "project_title": {"AI Chatbot"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, msgProjectSaved)
	assert.Contains(t, page, "Project Title:</strong> AI Chatbot")

	resp, err = http.PostForm(srv.URL+"/project", url.Values{"email": {"dean@college.edu"}, "project_title": {"x"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = body(t, resp)

	resp, err = http.PostForm(srv.URL+"/project", url.Values{"email": {"bob@uni.edu"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Please enter a project title.")
}

func uploadMapping(t *testing.T, srvURL, email, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("email", email))
	fw, err := mw.CreateFormFile("file", "mapping.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srvURL+"/mapping", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func TestMapping_PreviewAndConfirm(t *testing.T) {
	srv, store := newTestServer(t, advice.Result{})

	resp := uploadMapping(t, srv.URL, "dean@college.edu", "student_id,project_title\nx@uni.edu,Vision\n")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, "Preview of Uploaded Student Mapping:")
	assert.Contains(t, page, "<td>x@uni.edu</td><td>Vision</td>")

	m := regexp.MustCompile(`name="token" value="([^"]+)"`).FindStringSubmatch(page)
	require.Len(t, m, 2)

	resp, err := http.PostForm(srv.URL+"/mapping/confirm", url.Values{"email": {"dean@college.edu"}, "token": {m[1]}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), msgMappingSaved)

	recs, err := store.LoadProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Vision", recs[0].ProjectTitle)
}

func TestMapping_Errors(t *testing.T) {
	srv, _ := newTestServer(t, advice.Result{})

	resp := uploadMapping(t, srv.URL, "dean@college.edu", "name,title\na,b\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body(t, resp), "CSV must contain &#39;student_id&#39; and &#39;project_title&#39; columns.")

	resp = uploadMapping(t, srv.URL, "bob@uni.edu", "student_id,project_title\na,b\n")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = body(t, resp)

	resp, err := http.PostForm(srv.URL+"/mapping/confirm", url.Values{"email": {"dean@college.edu"}, "token": {"nope"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body(t, resp), "This upload has expired.")
}

func TestHistoryAPI(t *testing.T) {
	srv, store := newTestServer(t, advice.Result{})
	ctx := context.Background()
	require.NoError(t, store.AppendQuery(ctx, storage.QueryRecord{StudentID: "a@b.com", Query: "q", Timestamp: "01-01-2025 10:00"}))
	require.NoError(t, store.AppendQuery(ctx, storage.QueryRecord{StudentID: "other@b.com", Query: "q2", Timestamp: "01-01-2025 10:00", Response: "r"}))

	resp, err := http.Get(srv.URL + "/api/history?email=" + url.QueryEscape("a@b.com"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got historyResponse
	require.NoError(t, json.NewDecoder(strings.NewReader(body(t, resp))).Decode(&got))
	require.Len(t, got.Queries, 1)
	assert.Equal(t, desk.MsgNoResponse, got.Queries[0].Response)
	assert.Empty(t, got.Projects)

	resp, err = http.Get(srv.URL + "/api/history")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = body(t, resp)
}
