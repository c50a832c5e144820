package pending

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ask-kyra/internal/mapping"
)

// Upload is a parsed mapping file waiting for the admin to confirm it.
type Upload struct {
	ID        string         `json:"id"`
	Uploader  string         `json:"uploader"`
	Filename  string         `json:"filename"`
	CreatedAt time.Time      `json:"created_at"`
	Batch     *mapping.Batch `json:"batch"`
}

type Repository interface {
	Put(upload Upload) error
	// Take removes and returns the upload; ok is false when it is unknown or expired.
	Take(id string) (upload Upload, ok bool, err error)
}

// FileRepository keeps pending uploads in a JSON file so a confirm survives a
// restart. Entries older than ttl are dropped.
type FileRepository struct {
	path string
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
}

func NewFileRepository(path string, ttl time.Duration) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileRepository{path: path, ttl: ttl, now: time.Now}, nil
}

// Put stamps CreatedAt with the repository clock, so the TTL is always judged
// against the same clock.
func (r *FileRepository) Put(upload Upload) error {
	upload.CreatedAt = r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	uploads, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	uploads = append(uploads, upload)
	return r.saveUnlocked(uploads)
}

func (r *FileRepository) Take(id string) (Upload, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	uploads, err := r.loadUnlocked()
	if err != nil {
		return Upload{}, false, err
	}
	var (
		found Upload
		ok    bool
		rest  = make([]Upload, 0, len(uploads))
	)
	for _, u := range uploads {
		if !ok && u.ID == id {
			found, ok = u, true
			continue
		}
		rest = append(rest, u)
	}
	if err := r.saveUnlocked(rest); err != nil {
		return Upload{}, false, err
	}
	return found, ok, nil
}

// loadUnlocked reads the file and drops expired entries.
func (r *FileRepository) loadUnlocked() ([]Upload, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read pending uploads: %w", err)
	}
	var uploads []Upload
	if len(data) == 0 {
		return uploads, nil
	}
	// malformed -> start fresh
	if err := json.Unmarshal(data, &uploads); err != nil {
		return []Upload{}, nil
	}
	if r.ttl <= 0 {
		return uploads, nil
	}
	cutoff := r.now().Add(-r.ttl)
	live := uploads[:0]
	for _, u := range uploads {
		if u.CreatedAt.After(cutoff) {
			live = append(live, u)
		}
	}
	return live, nil
}

func (r *FileRepository) saveUnlocked(uploads []Upload) error {
	data, err := json.MarshalIndent(uploads, "", "  ")
	if err != nil {
		return fmt.Errorf("encode pending uploads: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write pending uploads: %w", err)
	}
	return os.Rename(tmp, r.path)
}
