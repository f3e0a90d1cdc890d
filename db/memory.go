package db

import (
	"context"
	"fmt"
	"sync"

	"milda_bot/models"
)

// MemoryStore keeps rows in process memory. Locations mimic sheet rows: the
// first ticket sits on row 2 under the header.
type MemoryStore struct {
	mu   sync.Mutex
	rows []models.Ticket
}

func NewMemoryStore(seed ...models.Ticket) *MemoryStore {
	return &MemoryStore{rows: append([]models.Ticket(nil), seed...)}
}

func (m *MemoryStore) Append(_ context.Context, t models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, t)
	return nil
}

func (m *MemoryStore) FindByID(ctx context.Context, id string) (models.Row, error) {
	rows, err := m.ReadAll(ctx)
	if err != nil {
		return models.Row{}, err
	}
	return findFirst(rows, id)
}

func (m *MemoryStore) ReadAll(_ context.Context) ([]models.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Row, len(m.rows))
	for i, t := range m.rows {
		out[i] = models.Row{Location: i + 2, Ticket: t}
	}
	return out, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, location int, status models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := location - 2
	if i < 0 || i >= len(m.rows) {
		return fmt.Errorf("update status: row %d out of range", location)
	}
	m.rows[i].Status = status
	return nil
}

// SetStatus changes a ticket's status the way support staff would by hand.
func (m *MemoryStore) SetStatus(id string, status models.Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].Status = status
			return true
		}
	}
	return false
}

func (m *MemoryStore) Tickets() []models.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Ticket(nil), m.rows...)
}
