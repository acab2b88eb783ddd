package signals

import (
	"context"
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
)

// memStore is an in-memory Store with the same version semantics as the
// Postgres store.
type memStore struct {
	sets        map[int]*model.WeightSet
	stats       map[string]Stat
	statsSince  time.Time
	activateErr error
}

func newMemStore(active *model.WeightSet) *memStore {
	m := &memStore{sets: map[int]*model.WeightSet{}, stats: map[string]Stat{}}
	if active != nil {
		active.Active = true
		m.sets[active.Version] = active
	}
	return m
}

func (m *memStore) activeVersion() int {
	for v, ws := range m.sets {
		if ws.Active {
			return v
		}
	}
	return 0
}

func (m *memStore) ActiveWeightSet(_ context.Context) (*model.WeightSet, error) {
	if v := m.activeVersion(); v != 0 {
		cp := *m.sets[v]
		cp.Weights = append([]model.SignalWeight(nil), m.sets[v].Weights...)
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) WeightSet(_ context.Context, version int) (*model.WeightSet, error) {
	ws, ok := m.sets[version]
	if !ok {
		return nil, nil
	}
	cp := *ws
	return &cp, nil
}

func (m *memStore) ListWeightSets(_ context.Context, _ int) ([]model.WeightSet, error) {
	var out []model.WeightSet
	for v := len(m.sets); v > 0; v-- {
		if ws, ok := m.sets[v]; ok {
			out = append(out, *ws)
		}
	}
	return out, nil
}

func (m *memStore) SignalStats(_ context.Context, since time.Time) (map[string]Stat, error) {
	m.statsSince = since
	return m.stats, nil
}

func (m *memStore) ActivateWeightSet(_ context.Context, prevVersion int, ws *model.WeightSet) (int, error) {
	if m.activateErr != nil {
		return 0, m.activateErr
	}
	if m.activeVersion() != prevVersion {
		return 0, ErrVersionConflict
	}
	for _, s := range m.sets {
		s.Active = false
	}
	highest := 0
	for v := range m.sets {
		if v > highest {
			highest = v
		}
	}
	ws.Version = highest + 1
	ws.Active = true
	m.sets[ws.Version] = ws
	return ws.Version, nil
}

func (m *memStore) ReactivateWeightSet(_ context.Context, version int) error {
	for _, s := range m.sets {
		s.Active = false
	}
	m.sets[version].Active = true
	return nil
}
