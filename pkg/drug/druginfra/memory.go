package druginfra

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/drug"
)

// MemoryStore is an in-process drug.Store for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	drugs   map[string]drug.Drug
	content map[string]drug.Content
	writes  int
}

func NewMemoryStore(drugs ...drug.Drug) *MemoryStore {
	s := &MemoryStore{
		drugs:   make(map[string]drug.Drug),
		content: make(map[string]drug.Content),
	}
	s.Seed(drugs...)
	return s
}

var _ drug.Store = (*MemoryStore)(nil)

// Seed adds or replaces drugs.
func (s *MemoryStore) Seed(drugs ...drug.Drug) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range drugs {
		s.drugs[d.ID] = d
	}
}

// SeedContent stores content without counting it as a write.
func (s *MemoryStore) SeedContent(c drug.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[c.DrugID] = cloneContent(c)
}

// Writes counts UpsertContent calls.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*drug.Drug, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drugs[id]
	if !ok {
		return nil, drug.NotFound(id)
	}
	return &d, nil
}

func (s *MemoryStore) FindNeedingContent(_ context.Context, limit int) ([]drug.Drug, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []drug.Drug
	for id, d := range s.drugs {
		if _, ok := s.content[id]; !ok {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return capped(out, limit), nil
}

func (s *MemoryStore) FindStale(_ context.Context, olderThan time.Time, minScore int, limit int) ([]drug.Drug, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type stale struct {
		d  drug.Drug
		at time.Time
	}
	var found []stale
	for id, c := range s.content {
		d, ok := s.drugs[id]
		if !ok {
			continue
		}
		if c.LastEnhanced.Before(olderThan) || c.ContentScore < minScore {
			found = append(found, stale{d: d, at: c.LastEnhanced})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].at.Equal(found[j].at) {
			return found[i].d.ID < found[j].d.ID
		}
		return found[i].at.Before(found[j].at)
	})

	out := make([]drug.Drug, 0, len(found))
	for _, f := range found {
		out = append(out, f.d)
	}
	return capped(out, limit), nil
}

func (s *MemoryStore) UpsertContent(_ context.Context, drugID string, content drug.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	content.DrugID = drugID
	s.content[drugID] = cloneContent(content)
	s.writes++
	return nil
}

func (s *MemoryStore) GetContent(_ context.Context, drugID string) (*drug.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.content[drugID]
	if !ok {
		return nil, drug.ContentNotFound(drugID)
	}
	c = cloneContent(c)
	return &c, nil
}

func capped(ds []drug.Drug, limit int) []drug.Drug {
	if limit > 0 && len(ds) > limit {
		return ds[:limit]
	}
	return ds
}

func cloneContent(c drug.Content) drug.Content {
	c.Keywords = append([]string(nil), c.Keywords...)
	c.FAQs = append([]drug.FAQ(nil), c.FAQs...)
	if c.Sections != nil {
		sections := make(map[string]string, len(c.Sections))
		for k, v := range c.Sections {
			sections[k] = v
		}
		c.Sections = sections
	}
	if c.StructuredData != nil {
		sd := make(map[string]any, len(c.StructuredData))
		for k, v := range c.StructuredData {
			sd[k] = v
		}
		c.StructuredData = sd
	}
	return c
}
