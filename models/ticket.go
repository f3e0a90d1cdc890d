package models

import (
	"strings"
	"time"
)

// TimestampLayout is the creation-time format stored in the timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

type Status string

const (
	StatusOpen                 Status = "Ouvert"
	StatusResolved             Status = "Résolu"
	StatusResolvedEN           Status = "Resolved"
	StatusAwaitingConfirmation Status = "En Attente de Confirmation"
	StatusConfirmedResolved    Status = "Résolu Confirmé"
	// StatusReopened is written back when the reporter says the issue persists.
	StatusReopened = StatusOpen
)

// IsResolvedMarker reports whether staff flagged the ticket as resolved.
// Both spellings are accepted.
func (s Status) IsResolvedMarker() bool {
	switch Status(strings.TrimSpace(string(s))) {
	case StatusResolved, StatusResolvedEN:
		return true
	}
	return false
}

// Columns is the ordered sheet header. Status is the seventh column.
var Columns = []string{"ticket_id", "timestamp", "chat_id", "category", "description", "priority", "status"}

const StatusColumn = 7

type Ticket struct {
	ID          string
	Timestamp   string
	ChatID      string
	Category    string
	Description string
	Priority    string
	Status      Status
}

// Row is a ticket together with its position in the store. For the sheet
// backend Location is the 1-based sheet row; for SQL it is the primary key.
type Row struct {
	Location int
	Ticket   Ticket
}

// Values returns the ticket as an ordered row matching Columns.
func (t Ticket) Values() []string {
	return []string{t.ID, t.Timestamp, t.ChatID, t.Category, t.Description, t.Priority, string(t.Status)}
}

// FromRecord builds a ticket from a header-keyed record.
func FromRecord(rec map[string]string) Ticket {
	return Ticket{
		ID:          rec["ticket_id"],
		Timestamp:   rec["timestamp"],
		ChatID:      rec["chat_id"],
		Category:    rec["category"],
		Description: rec["description"],
		Priority:    rec["priority"],
		Status:      Status(rec["status"]),
	}
}

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
