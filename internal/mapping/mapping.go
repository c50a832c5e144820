package mapping

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"ask-kyra/internal/storage"
)

var (
	ErrMissingColumns = errors.New("csv missing student_id or project_title column")
	ErrEmptyFile      = errors.New("no columns to parse from file")
)

// Row is one uploaded student-to-project mapping.
type Row struct {
	StudentID    string           `json:"student_id"`
	ProjectTitle string           `json:"project_title"`
	Extra        []storage.Column `json:"extra,omitempty"`
}

// Batch is a parsed upload. Columns keeps the header order of the file,
// without any Timestamp column: that one is set at ingest.
type Batch struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Parse reads an admin mapping upload. The file must have a header with
// student_id and project_title; any other columns are carried through.
func Parse(r io.Reader) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	data = stripBOM(data)

	cr := csv.NewReader(bufio.NewReader(bytes.NewReader(data)))
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	studentIdx, projectIdx := -1, -1
	for i, h := range header {
		switch h {
		case storage.ColStudentID:
			if studentIdx < 0 {
				studentIdx = i
			}
		case storage.ColProjectTitle:
			if projectIdx < 0 {
				projectIdx = i
			}
		}
	}
	if studentIdx < 0 || projectIdx < 0 {
		return nil, ErrMissingColumns
	}

	batch := &Batch{}
	for _, h := range header {
		if h == storage.ColTimestamp {
			continue
		}
		batch.Columns = append(batch.Columns, h)
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++
		if len(rec) > len(header) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", line, len(rec), len(header))
		}
		row := Row{StudentID: at(rec, studentIdx), ProjectTitle: at(rec, projectIdx)}
		for i, h := range header {
			if i == studentIdx || i == projectIdx || h == storage.ColTimestamp {
				continue
			}
			row.Extra = append(row.Extra, storage.Column{Name: h, Value: at(rec, i)})
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}

// Records stamps every row with the same timestamp.
func (b *Batch) Records(timestamp string) []storage.ProjectRecord {
	out := make([]storage.ProjectRecord, 0, len(b.Rows))
	for _, r := range b.Rows {
		out = append(out, storage.ProjectRecord{
			StudentID:    r.StudentID,
			ProjectTitle: r.ProjectTitle,
			Timestamp:    timestamp,
			Extra:        append([]storage.Column(nil), r.Extra...),
		})
	}
	return out
}

func at(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func stripBOM(b []byte) []byte {
	bom := []byte{0xEF, 0xBB, 0xBF}
	if len(b) >= 3 && bytes.Equal(b[:3], bom) {
		return b[3:]
	}
	return b
}
