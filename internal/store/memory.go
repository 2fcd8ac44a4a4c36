package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/AngelCh415/mediaplan/internal/models"
)

var ErrNotFound = errors.New("not found")

// References are the lookup tables the engine resolves insertions against.
type References struct {
	BuyingModels map[string]models.BuyingModel
	Channels     map[string]models.Channel
	Formats      map[string]models.Format
}

// MemoryStore holds the records materialized from the record source.
type MemoryStore struct {
	mu           sync.RWMutex
	clients      map[string]models.Client
	plans        map[string]models.MediaPlan
	insertions   map[string]models.Insertion
	buyingModels map[string]models.BuyingModel
	channels     map[string]models.Channel
	formats      map[string]models.Format
	applied      map[string]string // idempotencia por-record: key -> último hash
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:      make(map[string]models.Client),
		plans:        make(map[string]models.MediaPlan),
		insertions:   make(map[string]models.Insertion),
		buyingModels: make(map[string]models.BuyingModel),
		channels:     make(map[string]models.Channel),
		formats:      make(map[string]models.Format),
		applied:      make(map[string]string),
	}
}

// MarkApplied records version as the current content of key. It returns
// false when version is already the one applied.
func (s *MemoryStore) MarkApplied(key, version string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applied[key] == version {
		return false
	}
	s.applied[key] = version
	return true
}

func (s *MemoryStore) UpsertClient(c models.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

func (s *MemoryStore) UpsertPlan(p models.MediaPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
}

func (s *MemoryStore) UpsertInsertion(i models.Insertion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertions[i.ID] = i
}

func (s *MemoryStore) UpsertBuyingModel(b models.BuyingModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buyingModels[b.ID] = b
}

func (s *MemoryStore) UpsertChannel(c models.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[c.ID] = c
}

func (s *MemoryStore) UpsertFormat(f models.Format) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formats[f.ID] = f
}

// Load upserts every record of b.
func (s *MemoryStore) Load(b models.Bundle) {
	for _, r := range b.Clients {
		s.UpsertClient(r)
	}
	for _, r := range b.Plans {
		s.UpsertPlan(r)
	}
	for _, r := range b.Insertions {
		s.UpsertInsertion(r)
	}
	for _, r := range b.BuyingModels {
		s.UpsertBuyingModel(r)
	}
	for _, r := range b.Channels {
		s.UpsertChannel(r)
	}
	for _, r := range b.Formats {
		s.UpsertFormat(r)
	}
}

func (s *MemoryStore) Plan(id string) (models.MediaPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return models.MediaPlan{}, ErrNotFound
	}
	return p, nil
}

// Client returns nil when the plan's client is unknown; a plan without a
// client is still computable.
func (s *MemoryStore) Client(id string) *models.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil
	}
	return &c
}

// Plans returns all plans ordered by id.
func (s *MemoryStore) Plans() []models.MediaPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MediaPlan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InsertionsForPlan returns the plan's insertions ordered by id, so repeated
// computations see the same input.
func (s *MemoryStore) InsertionsForPlan(planID string) []models.Insertion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Insertion
	for _, i := range s.insertions {
		if i.PlanID == planID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// References returns copies of the lookup tables.
func (s *MemoryStore) References() References {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := References{
		BuyingModels: make(map[string]models.BuyingModel, len(s.buyingModels)),
		Channels:     make(map[string]models.Channel, len(s.channels)),
		Formats:      make(map[string]models.Format, len(s.formats)),
	}
	for k, v := range s.buyingModels {
		r.BuyingModels[k] = v
	}
	for k, v := range s.channels {
		r.Channels[k] = v
	}
	for k, v := range s.formats {
		r.Formats[k] = v
	}
	return r
}

// Counts reports how many records of each kind are held.
func (s *MemoryStore) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"clients":       len(s.clients),
		"plans":         len(s.plans),
		"insertions":    len(s.insertions),
		"buying_models": len(s.buyingModels),
		"channels":      len(s.channels),
		"formats":       len(s.formats),
	}
}
