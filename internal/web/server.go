package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ask-kyra/internal/desk"
	"ask-kyra/internal/logging"
	"ask-kyra/internal/storage"
)

const sessionCookie = "kyra_session"

type Handler struct {
	desk      *desk.Service
	maxUpload int64
}

func NewHandler(d *desk.Service, maxUpload int64) *Handler {
	return &Handler{desk: d, maxUpload: maxUpload}
}

// NewRouter wires the page, the form posts and the JSON endpoints.
func NewRouter(h *Handler, logger *logging.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(logger))
	r.Use(maxBytes(h.maxUpload))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Index)
	r.Post("/query", h.SubmitQuery)
	r.Post("/project", h.SubmitProject)
	r.Post("/mapping", h.PreviewMapping)
	r.Post("/mapping/confirm", h.ConfirmMapping)
	r.Get("/api/history", h.History)
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	data := newPageData(h.desk.Identify(r.URL.Query().Get("email")))
	data.selectSample(r.URL.Query().Get("sample"))
	h.render(w, r, http.StatusOK, data)
}

func (h *Handler) SubmitQuery(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	question := r.FormValue("question")
	data := newPageData(h.desk.Identify(email))
	data.Question = question
	data.Selected = customQuestion

	ex, err := h.desk.SubmitQuery(r.Context(), sessionID(w, r), email, question)
	if err != nil {
		h.fail(w, r, data, err)
		return
	}
	data.Success = msgQueryReceived
	data.Reply = &reply{Text: ex.Entry.Response, Failed: ex.Entry.Failed}
	h.render(w, r, http.StatusOK, data)
}

func (h *Handler) SubmitProject(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	data := newPageData(h.desk.Identify(email))

	if _, err := h.desk.SubmitProject(r.Context(), email, r.FormValue("project_title")); err != nil {
		h.fail(w, r, data, err)
		return
	}
	data.Success = msgProjectSaved
	h.render(w, r, http.StatusOK, data)
}

func (h *Handler) PreviewMapping(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		status := http.StatusBadRequest
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	email := r.FormValue("email")
	data := newPageData(h.desk.Identify(email))

	file, header, err := r.FormFile("file")
	if err != nil {
		data.Error = "Please choose a CSV file to upload."
		h.render(w, r, http.StatusBadRequest, data)
		return
	}
	defer file.Close()

	up, err := h.desk.PreviewMapping(r.Context(), email, header.Filename, file)
	if err != nil {
		h.fail(w, r, data, err)
		return
	}
	data.Preview = newPreview(up)
	h.render(w, r, http.StatusOK, data)
}

func (h *Handler) ConfirmMapping(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	data := newPageData(h.desk.Identify(email))

	if _, err := h.desk.ConfirmMapping(r.Context(), email, r.FormValue("token")); err != nil {
		h.fail(w, r, data, err)
		return
	}
	data.Success = msgMappingSaved
	h.render(w, r, http.StatusOK, data)
}

type historyResponse struct {
	Queries  []storage.QueryRecord   `json:"queries"`
	Projects []storage.ProjectRecord `json:"projects"`
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeErrorJSON(w, http.StatusBadRequest, "email is required")
		return
	}
	queries, err := h.desk.QueryHistory(r.Context(), email)
	if err != nil {
		h.logError(r, "load query history", err)
		writeErrorJSON(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	projects, err := h.desk.ProjectHistory(r.Context(), email)
	if err != nil {
		h.logError(r, "load project history", err)
		writeErrorJSON(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	if queries == nil {
		queries = []storage.QueryRecord{}
	}
	if projects == nil {
		projects = []storage.ProjectRecord{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(historyResponse{Queries: queries, Projects: projects})
}

// fail renders the page with the error shown inline.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, data *pageData, err error) {
	var ve *desk.ValidationError
	switch {
	case errors.As(err, &ve):
		data.Error = ve.Message
		h.render(w, r, http.StatusBadRequest, data)
	case errors.Is(err, desk.ErrForbidden):
		data.Error = msgForbidden
		h.render(w, r, http.StatusForbidden, data)
	default:
		h.logError(r, "request failed", err)
		data.Error = msgInternal
		h.render(w, r, http.StatusInternalServerError, data)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data *pageData) {
	if data.Identity.Email != "" {
		data.SessionLog = h.desk.SessionLog(sessionID(w, r))
		if err := h.loadHistory(r, data); err != nil {
			h.logError(r, "load history", err)
			data.Error = msgInternal
			data.Success = ""
			data.Queries, data.Projects = nil, nil
			data.HistoryFailed = true
			status = http.StatusInternalServerError
		}
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		h.logError(r, "render page", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// loadHistory fills the stored history of the page's email.
func (h *Handler) loadHistory(r *http.Request, data *pageData) error {
	ctx := r.Context()
	queries, err := h.desk.QueryHistory(ctx, data.Identity.Email)
	if err != nil {
		return err
	}
	data.Queries = queries
	if data.Identity.Admin {
		return nil
	}
	projects, err := h.desk.ProjectHistory(ctx, data.Identity.Email)
	if err != nil {
		return err
	}
	data.Projects = projects
	return nil
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	ctx := r.Context()
	logging.FromContext(ctx).Error(ctx, msg, zap.Error(err))
}

// sessionID returns the browser session id, issuing a cookie on first use.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	// later calls within the same request see the new id
	r.AddCookie(&http.Cookie{Name: sessionCookie, Value: id})
	return id
}

func writeErrorJSON(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	resp, _ := json.Marshal(map[string]string{"error": message})
	_, _ = w.Write(resp)
}
