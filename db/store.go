package db

import (
	"context"
	"errors"

	"milda_bot/models"
)

// ErrNotFound is returned by FindByID when no row carries the identifier.
var ErrNotFound = errors.New("ticket not found")

// RowStore is the persisted ticket table. Rows come back in storage order.
type RowStore interface {
	Append(ctx context.Context, t models.Ticket) error
	// FindByID returns the first row whose ticket_id matches exactly.
	FindByID(ctx context.Context, id string) (models.Row, error)
	ReadAll(ctx context.Context) ([]models.Row, error)
	UpdateStatus(ctx context.Context, location int, status models.Status) error
}

func findFirst(rows []models.Row, id string) (models.Row, error) {
	for _, r := range rows {
		if r.Ticket.ID == id {
			return r, nil
		}
	}
	return models.Row{}, ErrNotFound
}
