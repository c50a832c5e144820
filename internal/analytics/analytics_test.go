package analytics

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"ask-kyra/internal/storage"
)

func TestSummarize(t *testing.T) {
	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	queries := []storage.QueryRecord{
		{StudentID: "a@uni.edu", Query: "q1", Timestamp: "15-06-2025 09:00", Response: "answer"},
		{StudentID: "a@uni.edu", Query: "q2", Timestamp: "15-06-2025 23:59", Response: "Error: 500 - server error"},
		{StudentID: "b@uni.edu", Query: "q3", Timestamp: "15-06-2025 10:30", Response: "API call failed: timeout"},
		// other days and garbage timestamps are ignored
		{StudentID: "c@uni.edu", Query: "q4", Timestamp: "16-06-2025 00:00", Response: "answer"},
		{StudentID: "c@uni.edu", Query: "q5", Timestamp: "yesterday", Response: "answer"},
	}
	projects := []storage.ProjectRecord{
		{StudentID: "a@uni.edu", ProjectTitle: "Chatbot", Timestamp: "15-06-2025 11:00"},
		{StudentID: "d@uni.edu", ProjectTitle: "Vision", Timestamp: "15-06-2025 11:00"},
		{StudentID: "e@uni.edu", ProjectTitle: "Old", Timestamp: "14-06-2025 11:00"},
	}

	stats := Summarize(queries, projects, day)

	if stats.Date != "2025-06-15" {
		t.Errorf("Expected date '2025-06-15', got '%s'", stats.Date)
	}
	if stats.TotalQueries != 3 {
		t.Errorf("Expected 3 queries, got %d", stats.TotalQueries)
	}
	if stats.UniqueStudents != 2 {
		t.Errorf("Expected 2 students asking, got %d", stats.UniqueStudents)
	}
	if stats.FailedAnswers != 2 {
		t.Errorf("Expected 2 failed answers, got %d", stats.FailedAnswers)
	}
	if stats.ProjectRows != 2 {
		t.Errorf("Expected 2 project rows, got %d", stats.ProjectRows)
	}
	a := stats.StudentStats["a@uni.edu"]
	if a.Queries != 2 || a.Failed != 1 || a.Projects != 1 {
		t.Errorf("unexpected stats for a: %+v", a)
	}
	if _, ok := stats.StudentStats["c@uni.edu"]; ok {
		t.Errorf("c@uni.edu has no activity on the day")
	}
}

func TestGenerateReportSummary(t *testing.T) {
	stats := &DailyStats{
		Date:           "2025-06-15",
		TotalQueries:   3,
		UniqueStudents: 2,
		FailedAnswers:  1,
		ProjectRows:    1,
		StudentStats: map[string]StudentStats{
			"b@uni.edu": {StudentID: "b@uni.edu", Queries: 1},
			"a@uni.edu": {StudentID: "a@uni.edu", Queries: 2, Failed: 1, Projects: 1},
		},
	}
	summary := stats.GenerateReportSummary()

	for _, want := range []string{"2025-06-15", "Questions asked: 3", "Failed advice calls: 1", "- a@uni.edu: 2 questions (1 failed), 1 projects"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
	if strings.Index(summary, "a@uni.edu") > strings.Index(summary, "b@uni.edu") {
		t.Errorf("students should be sorted")
	}
}

func TestToJSON(t *testing.T) {
	stats := Summarize(nil, nil, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	out, err := stats.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	var back DailyStats
	if err := json.Unmarshal([]byte(out), &back); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if back.Date != "2025-01-01" || back.TotalQueries != 0 {
		t.Errorf("unexpected round trip: %+v", back)
	}
}
