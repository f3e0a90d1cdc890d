package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"milda_bot/config"
	"milda_bot/models"

	_ "github.com/go-sql-driver/mysql"
)

// Init opens the MySQL connection and makes sure the tickets table exists.
func Init(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=true",
		cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(createTable)
	if err != nil {
		return nil, err
	}

	return db, nil
}

const createTable = `
	CREATE TABLE IF NOT EXISTS tickets (
		id INT AUTO_INCREMENT PRIMARY KEY,
		ticket_id VARCHAR(32) NOT NULL,
		timestamp VARCHAR(19) NOT NULL,
		chat_id VARCHAR(64) NOT NULL DEFAULT '',
		category TEXT,
		description TEXT,
		priority VARCHAR(64),
		status VARCHAR(64) NOT NULL DEFAULT 'Ouvert',
		INDEX idx_ticket_id (ticket_id)
	) CHARACTER SET utf8mb4
`

// MySQLStore keeps the ticket table in MySQL. Location is the auto-increment id.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (s *MySQLStore) Append(ctx context.Context, t models.Ticket) error {
	query := "INSERT INTO tickets (ticket_id, timestamp, chat_id, category, description, priority, status) VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, query, t.ID, t.Timestamp, t.ChatID, t.Category, t.Description, t.Priority, string(t.Status))
	if err != nil {
		return fmt.Errorf("insert ticket %s: %w", t.ID, err)
	}
	return nil
}

func (s *MySQLStore) FindByID(ctx context.Context, id string) (models.Row, error) {
	query := "SELECT id, ticket_id, timestamp, chat_id, category, description, priority, status FROM tickets WHERE ticket_id = ? ORDER BY id LIMIT 1"
	var r models.Row
	var status string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&r.Location, &r.Ticket.ID, &r.Ticket.Timestamp, &r.Ticket.ChatID,
		&r.Ticket.Category, &r.Ticket.Description, &r.Ticket.Priority, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Row{}, ErrNotFound
	}
	if err != nil {
		return models.Row{}, fmt.Errorf("find ticket %s: %w", id, err)
	}
	r.Ticket.Status = models.Status(status)
	return r, nil
}

func (s *MySQLStore) ReadAll(ctx context.Context) ([]models.Row, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, ticket_id, timestamp, chat_id, category, description, priority, status FROM tickets ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var out []models.Row
	for rows.Next() {
		var r models.Row
		var status string
		if err := rows.Scan(&r.Location, &r.Ticket.ID, &r.Ticket.Timestamp, &r.Ticket.ChatID,
			&r.Ticket.Category, &r.Ticket.Description, &r.Ticket.Priority, &status); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		r.Ticket.Status = models.Status(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return out, nil
}

func (s *MySQLStore) UpdateStatus(ctx context.Context, location int, status models.Status) error {
	_, err := s.db.ExecContext(ctx, "UPDATE tickets SET status = ? WHERE id = ?", string(status), location)
	if err != nil {
		return fmt.Errorf("update status of row %d: %w", location, err)
	}
	return nil
}
