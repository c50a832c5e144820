package web

import (
	"embed"
	"html/template"

	"ask-kyra/internal/auth"
	"ask-kyra/internal/history"
	"ask-kyra/internal/pending"
	"ask-kyra/internal/storage"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templatesFS, "templates/page.html"))

const customQuestion = "Custom question..."

var sampleQuestions = []string{
	"How do I write my internship resume?",
	"What are the best final-year projects in AI?",
	"How can I prepare for my upcoming interview?",
	"What skills should I learn for a career in cybersecurity?",
}

const (
	msgQueryReceived = "Thank you! Ky’ra has received your question and is preparing your guidance."
	msgProjectSaved  = "Project title submitted successfully!"
	msgMappingSaved  = "Student mapping saved successfully!"
	msgForbidden     = "This action is not available for your role."
	msgInternal      = "Something went wrong while saving. Please try again."
)

type greeting struct {
	Title    string
	Subtitle string
}

func greet(id auth.Identity) greeting {
	switch {
	case id.Email == "":
		return greeting{
			Title:    "👋 Ask Ky’ra – Your Internship Assistant",
			Subtitle: "Hi! I’m Ky’ra, your internship buddy. Enter your email to get started!",
		}
	case id.Admin:
		return greeting{
			Title:    "🎓 Welcome College Admin, " + id.DisplayName + "!",
			Subtitle: "Manage student mappings, projects, and reports with Ky’ra.",
		}
	default:
		return greeting{
			Title:    "👋 Hi " + id.DisplayName + ", ready to explore your internship path?",
			Subtitle: "Ask Ky’ra anything about resumes, interviews, or project help - I’ll guide you step-by-step!",
		}
	}
}

type preview struct {
	Token    string
	Filename string
	Columns  []string
	Rows     [][]string
}

func newPreview(up pending.Upload) *preview {
	p := &preview{Token: up.ID, Filename: up.Filename, Columns: up.Batch.Columns}
	for _, r := range up.Batch.Rows {
		values := map[string]string{
			storage.ColStudentID:    r.StudentID,
			storage.ColProjectTitle: r.ProjectTitle,
		}
		for _, c := range r.Extra {
			values[c.Name] = c.Value
		}
		cells := make([]string, len(p.Columns))
		for i, c := range p.Columns {
			cells[i] = values[c]
		}
		p.Rows = append(p.Rows, cells)
	}
	return p
}

type reply struct {
	Text   string
	Failed bool
}

type pageData struct {
	Identity auth.Identity
	Greeting greeting
	Samples  []string
	Selected string
	Question string

	Error   string
	Success string
	Reply   *reply
	Preview *preview

	SessionLog    []history.Entry
	Queries       []storage.QueryRecord
	Projects      []storage.ProjectRecord
	HistoryFailed bool
}

func newPageData(id auth.Identity) *pageData {
	return &pageData{
		Identity: id,
		Greeting: greet(id),
		Samples:  append(append([]string{}, sampleQuestions...), customQuestion),
		Selected: sampleQuestions[0],
		Question: sampleQuestions[0],
	}
}

// selectSample prefills the question box from a chosen sample.
func (p *pageData) selectSample(sample string) {
	if sample == "" {
		return
	}
	p.Selected = sample
	p.Question = ""
	for _, q := range sampleQuestions {
		if q == sample {
			p.Question = q
		}
	}
}
