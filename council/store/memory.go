// Package store provides ConversationStore implementations: an in-memory
// store for tests and development, a SQLite store for single-process
// persistence, and a MySQL store for shared deployments.
//
// All implementations satisfy the same contract: LoadContext on an unknown
// id yields an empty slice, Commit atomically appends exactly one turn and
// creates the conversation on first use, Get/Delete return
// council.ErrNotFound for unknown ids, and List orders newest first.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dshills/council-go/council"
)

// MemoryStore is an in-memory ConversationStore.
//
// Designed for testing and development; data is lost when the process
// terminates. Safe for concurrent use. Returned records and turns are deep
// copies, so callers can never mutate stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*council.ConversationRecord
	order   []string // ids in creation order, oldest first
}

// NewMemoryStore creates an empty in-memory store.
//
// Example:
//
//	st := store.NewMemoryStore()
//	eng, err := council.New(cfg, client, st)
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*council.ConversationRecord)}
}

// LoadContext returns the committed turns of a conversation in commit
// order. Unknown ids yield an empty slice.
func (m *MemoryStore) LoadContext(_ context.Context, conversationID string) ([]council.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[conversationID]
	if !ok {
		return nil, nil
	}
	return copyTurns(rec.Turns), nil
}

// Commit appends a turn, creating the conversation on first use.
func (m *MemoryStore) Commit(_ context.Context, conversationID string, turn council.Turn) (council.ConversationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[conversationID]
	if !ok {
		rec = &council.ConversationRecord{
			ID:        conversationID,
			CreatedAt: turn.CreatedAt,
		}
		m.records[conversationID] = rec
		m.order = append(m.order, conversationID)
	}
	rec.Turns = append(rec.Turns, copyTurn(turn))

	return copyRecord(rec), nil
}

// Get returns the full conversation record, council.ErrNotFound when the id
// is unknown.
func (m *MemoryStore) Get(_ context.Context, conversationID string) (council.ConversationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[conversationID]
	if !ok {
		return council.ConversationRecord{}, council.ErrNotFound
	}
	return copyRecord(rec), nil
}

// List returns summaries of all conversations, newest first.
func (m *MemoryStore) List(_ context.Context) ([]council.ConversationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]council.ConversationSummary, 0, len(m.order))
	for _, id := range m.order {
		rec := m.records[id]
		summary := council.ConversationSummary{
			ID:        rec.ID,
			CreatedAt: rec.CreatedAt,
			TurnCount: len(rec.Turns),
		}
		if len(rec.Turns) > 0 {
			summary.FirstQuery = rec.Turns[0].Query
		}
		out = append(out, summary)
	}

	// Creation order is oldest first; listings are newest first. A stable
	// sort keeps same-timestamp conversations in reverse creation order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a conversation, council.ErrNotFound when the id is unknown.
func (m *MemoryStore) Delete(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[conversationID]; !ok {
		return council.ErrNotFound
	}
	delete(m.records, conversationID)
	for i, id := range m.order {
		if id == conversationID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func copyRecord(rec *council.ConversationRecord) council.ConversationRecord {
	return council.ConversationRecord{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		Turns:     copyTurns(rec.Turns),
	}
}

func copyTurns(turns []council.Turn) []council.Turn {
	out := make([]council.Turn, len(turns))
	for i, t := range turns {
		out[i] = copyTurn(t)
	}
	return out
}

func copyTurn(t council.Turn) council.Turn {
	out := t
	out.Stage1 = make(map[string]council.ModelResult, len(t.Stage1))
	for k, v := range t.Stage1 {
		if v.Error != nil {
			e := *v.Error
			v.Error = &e
		}
		out.Stage1[k] = v
	}
	out.Stage2 = make(map[string]council.ReviewResult, len(t.Stage2))
	for k, v := range t.Stage2 {
		if v.Error != nil {
			e := *v.Error
			v.Error = &e
		}
		if v.Ranking != nil {
			r := council.Ranking{
				Order:     append([]string(nil), v.Ranking.Order...),
				Rationale: v.Ranking.Rationale,
			}
			v.Ranking = &r
		}
		out.Stage2[k] = v
	}
	return out
}
