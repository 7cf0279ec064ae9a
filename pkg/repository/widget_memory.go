package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/Borislavv/notion-widget-cache/pkg/model"
)

// MemoryWidgets keeps widgets in process, it backs local runs and tests.
type MemoryWidgets struct {
	mu     sync.RWMutex
	bySlug map[string]model.Widget
}

func NewMemoryWidgets(widgets ...model.Widget) *MemoryWidgets {
	r := &MemoryWidgets{bySlug: make(map[string]model.Widget, len(widgets))}
	for _, w := range widgets {
		r.Put(w)
	}
	return r
}

// LoadMemoryWidgets reads a JSON array of widgets from path.
func LoadMemoryWidgets(path string) (*MemoryWidgets, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read widgets seed: %w", err)
	}
	var widgets []model.Widget
	if err = json.Unmarshal(raw, &widgets); err != nil {
		return nil, fmt.Errorf("decode widgets seed %s: %w", path, err)
	}
	return NewMemoryWidgets(widgets...), nil
}

func (r *MemoryWidgets) Put(w model.Widget) {
	r.mu.Lock()
	r.bySlug[w.Slug] = w
	r.mu.Unlock()
}

func (r *MemoryWidgets) GetBySlug(_ context.Context, slug string) (*model.Widget, error) {
	r.mu.RLock()
	w, ok := r.bySlug[slug]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &w, nil
}
