package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"ask-kyra/internal/advice"
	"ask-kyra/internal/storage"
)

// DailyStats is the activity of one calendar day.
type DailyStats struct {
	Date           string                  `json:"date"`
	TotalQueries   int                     `json:"total_queries"`
	UniqueStudents int                     `json:"unique_students"`
	FailedAnswers  int                     `json:"failed_answers"`
	ProjectRows    int                     `json:"project_rows"`
	StudentStats   map[string]StudentStats `json:"student_stats"`
}

type StudentStats struct {
	StudentID string `json:"student_id"`
	Queries   int    `json:"queries"`
	Failed    int    `json:"failed"`
	Projects  int    `json:"projects"`
}

// Summarize counts the rows stamped on day. Rows whose timestamp does not
// parse are ignored.
func Summarize(queries []storage.QueryRecord, projects []storage.ProjectRecord, day time.Time) *DailyStats {
	startOfDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)
	onDay := func(ts string) bool {
		t, err := time.ParseInLocation(storage.TimestampLayout, ts, day.Location())
		return err == nil && !t.Before(startOfDay) && t.Before(endOfDay)
	}

	stats := &DailyStats{
		Date:         startOfDay.Format("2006-01-02"),
		StudentStats: make(map[string]StudentStats),
	}
	for _, q := range queries {
		if !onDay(q.Timestamp) {
			continue
		}
		stats.TotalQueries++
		s := stats.student(q.StudentID)
		s.Queries++
		if advice.IsFailureText(q.Response) {
			stats.FailedAnswers++
			s.Failed++
		}
		stats.StudentStats[q.StudentID] = s
	}
	for _, p := range projects {
		if !onDay(p.Timestamp) {
			continue
		}
		stats.ProjectRows++
		s := stats.student(p.StudentID)
		s.Projects++
		stats.StudentStats[p.StudentID] = s
	}
	for _, s := range stats.StudentStats {
		if s.Queries > 0 {
			stats.UniqueStudents++
		}
	}
	return stats
}

func (ds *DailyStats) student(id string) StudentStats {
	if s, ok := ds.StudentStats[id]; ok {
		return s
	}
	return StudentStats{StudentID: id}
}

// GenerateReportSummary renders the digest as plain text for the admin.
func (ds *DailyStats) GenerateReportSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ky’ra activity for %s\n\n", ds.Date)
	fmt.Fprintf(&b, "Questions asked: %d\n", ds.TotalQueries)
	fmt.Fprintf(&b, "Students asking: %d\n", ds.UniqueStudents)
	fmt.Fprintf(&b, "Failed advice calls: %d\n", ds.FailedAnswers)
	fmt.Fprintf(&b, "Project rows saved: %d\n", ds.ProjectRows)

	if len(ds.StudentStats) == 0 {
		return b.String()
	}
	ids := make([]string, 0, len(ds.StudentStats))
	for id := range ds.StudentStats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	b.WriteString("\nBy student:\n")
	for _, id := range ids {
		s := ds.StudentStats[id]
		fmt.Fprintf(&b, "- %s: %d questions", id, s.Queries)
		if s.Failed > 0 {
			fmt.Fprintf(&b, " (%d failed)", s.Failed)
		}
		if s.Projects > 0 {
			fmt.Fprintf(&b, ", %d projects", s.Projects)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
