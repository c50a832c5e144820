package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// CSVStore keeps queries and projects in two flat files with a fixed header.
// Every write for a file goes through that file's mutex.
type CSVStore struct {
	queries  *csvTable
	projects *csvTable
}

func NewCSVStore(queriesPath, projectsPath string) (*CSVStore, error) {
	q, err := newCSVTable(queriesPath, QueryHeader)
	if err != nil {
		return nil, fmt.Errorf("init queries file: %w", err)
	}
	p, err := newCSVTable(projectsPath, ProjectHeader)
	if err != nil {
		return nil, fmt.Errorf("init projects file: %w", err)
	}
	return &CSVStore{queries: q, projects: p}, nil
}

func (s *CSVStore) AppendQuery(ctx context.Context, rec QueryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec = rec.normalized()
	row := []string{rec.StudentID, rec.Query, rec.Timestamp, rec.Response}
	return s.queries.append(QueryHeader, [][]string{row})
}

func (s *CSVStore) AppendProjects(ctx context.Context, recs []ProjectRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	recs = normalizeProjects(recs)
	header := append([]string{}, ProjectHeader...)
	seen := map[string]bool{ColStudentID: true, ColProjectTitle: true, ColTimestamp: true}
	for _, r := range recs {
		for _, c := range r.Extra {
			if !seen[c.Name] {
				seen[c.Name] = true
				header = append(header, c.Name)
			}
		}
	}
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		values := map[string]string{
			ColStudentID:    r.StudentID,
			ColProjectTitle: r.ProjectTitle,
			ColTimestamp:    r.Timestamp,
		}
		for _, c := range r.Extra {
			values[c.Name] = c.Value
		}
		row := make([]string, len(header))
		for i, h := range header {
			row[i] = values[h]
		}
		rows = append(rows, row)
	}
	return s.projects.append(header, rows)
}

func (s *CSVStore) LoadQueries(ctx context.Context) ([]QueryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	header, rows, err := s.queries.readAll()
	if err != nil {
		return nil, err
	}
	idx := indexOf(header)
	out := make([]QueryRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, QueryRecord{
			StudentID: cell(row, idx, ColStudentID),
			Query:     cell(row, idx, ColQuery),
			Timestamp: cell(row, idx, ColTimestamp),
			Response:  cell(row, idx, ColResponse),
		})
	}
	return out, nil
}

func (s *CSVStore) LoadProjects(ctx context.Context) ([]ProjectRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	header, rows, err := s.projects.readAll()
	if err != nil {
		return nil, err
	}
	idx := indexOf(header)
	out := make([]ProjectRecord, 0, len(rows))
	for _, row := range rows {
		rec := ProjectRecord{
			StudentID:    cell(row, idx, ColStudentID),
			ProjectTitle: cell(row, idx, ColProjectTitle),
			Timestamp:    cell(row, idx, ColTimestamp),
		}
		for i, h := range header {
			switch h {
			case ColStudentID, ColProjectTitle, ColTimestamp:
				continue
			}
			var v string
			if i < len(row) {
				v = row[i]
			}
			rec.Extra = append(rec.Extra, Column{Name: h, Value: v})
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *CSVStore) Close() error { return nil }

func normalizeProjects(recs []ProjectRecord) []ProjectRecord {
	out := make([]ProjectRecord, len(recs))
	for i, r := range recs {
		out[i] = r.normalized()
	}
	return out
}

type csvTable struct {
	path       string
	baseHeader []string
	mu         sync.Mutex
}

func newCSVTable(path string, header []string) (*csvTable, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure dir: %w", err)
		}
	}
	t := &csvTable{path: path, baseHeader: header}
	st, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist) || (err == nil && st.Size() == 0):
		if err := t.rewrite(header, nil); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("stat: %w", err)
	}
	return t, nil
}

// append writes rows laid out by header. When header names a column the file
// does not have yet, the whole file is rewritten with the widened header.
func (t *csvTable) append(header []string, rows [][]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	fileHeader, err := t.headerUnlocked()
	if err != nil {
		return err
	}
	merged := mergeHeaders(fileHeader, header)
	reordered := make([][]string, 0, len(rows))
	for _, row := range rows {
		reordered = append(reordered, realign(row, header, merged))
	}
	if len(merged) != len(fileHeader) {
		_, existing, err := t.readUnlocked()
		if err != nil {
			return err
		}
		widened := make([][]string, 0, len(existing)+len(rows))
		for _, row := range existing {
			widened = append(widened, realign(row, fileHeader, merged))
		}
		return t.rewrite(merged, append(widened, reordered...))
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	if err := ensureTrailingNewline(f, t.path); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(reordered); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return f.Sync()
}

func (t *csvTable) readAll() ([]string, [][]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readUnlocked()
}

func (t *csvTable) headerUnlocked() ([]string, error) {
	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return t.baseHeader, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open read: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	header, err := csv.NewReader(f).Read()
	if err == io.EOF {
		return t.baseHeader, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return header, nil
}

func (t *csvTable) readUnlocked() ([]string, [][]string, error) {
	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return t.baseHeader, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open read: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return t.baseHeader, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// rewrite replaces the file through a temp file and rename.
func (t *csvTable) rewrite(header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

func ensureTrailingNewline(f *os.File, path string) error {
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if st.Size() == 0 {
		return nil
	}
	rf, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open tail: %w", err)
	}
	defer func(rf *os.File) {
		_ = rf.Close()
	}(rf)
	last := make([]byte, 1)
	if _, err := rf.ReadAt(last, st.Size()-1); err != nil {
		return fmt.Errorf("read tail: %w", err)
	}
	if last[0] != '\n' {
		if _, err := f.Write([]byte("\n")); err != nil {
			return fmt.Errorf("terminate last row: %w", err)
		}
	}
	return nil
}

func mergeHeaders(base, extra []string) []string {
	out := append([]string{}, base...)
	seen := make(map[string]bool, len(base))
	for _, h := range base {
		seen[h] = true
	}
	for _, h := range extra {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

func realign(row, from, to []string) []string {
	values := make(map[string]string, len(from))
	for i, h := range from {
		if i < len(row) {
			values[h] = row[i]
		}
	}
	out := make([]string, len(to))
	for i, h := range to {
		out[i] = values[h]
	}
	return out
}

func indexOf(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}
	return idx
}

func cell(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
