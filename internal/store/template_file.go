package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileTemplateRepository keeps the template catalog in a single JSON array file.
type FileTemplateRepository struct {
	mu   sync.Mutex
	path string
}

func NewFileTemplateRepository(path string) *FileTemplateRepository {
	return &FileTemplateRepository{path: path}
}

func (r *FileTemplateRepository) ListTemplates(_ context.Context, typ string) ([]Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load()
	if err != nil {
		return nil, err
	}
	if typ == "" {
		return all, nil
	}

	out := make([]Template, 0, len(all))
	for _, t := range all {
		if t.HasType(typ) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *FileTemplateRepository) CreateTemplate(_ context.Context, t Template) (*Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, existing := range all {
		if existing.ID == t.ID {
			return nil, ErrAlreadyExists
		}
	}
	all = append(all, t)

	if err := r.save(all); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *FileTemplateRepository) load() ([]Template, error) {
	b, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Template{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}

	var out []Template
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	if out == nil {
		out = []Template{}
	}
	return out, nil
}

// save writes to a sibling temp file and renames it over the catalog.
func (r *FileTemplateRepository) save(all []Template) error {
	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".templates-*.json")
	if err != nil {
		return fmt.Errorf("write templates: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write templates: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write templates: %w", err)
	}
	return os.Rename(tmp.Name(), r.path)
}
