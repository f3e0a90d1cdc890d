package db

import (
	"context"
	"fmt"
	"os"
	"strings"

	"milda_bot/config"
)

// Open connects the backend named by cfg.StoreBackend. The returned close
// func releases whatever the backend holds.
func Open(ctx context.Context, cfg *config.Config) (RowStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case config.BackendSheets:
		creds, err := credentialsJSON(cfg.SheetCredentials)
		if err != nil {
			return nil, nil, err
		}
		s, err := NewSheetsStore(ctx, cfg.SheetID, cfg.SheetName, creds)
		if err != nil {
			return nil, nil, fmt.Errorf("open sheet: %w", err)
		}
		return s, noop, nil

	case config.BackendMySQL:
		conn, err := Init(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return NewMySQLStore(conn), conn.Close, nil

	case config.BackendMemory:
		return NewMemoryStore(), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// credentialsJSON accepts either the service-account JSON itself or a path
// to a file holding it.
func credentialsJSON(v string) ([]byte, error) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "{") {
		return []byte(v), nil
	}
	b, err := os.ReadFile(v)
	if err != nil {
		return nil, fmt.Errorf("read sheet credentials: %w", err)
	}
	return b, nil
}
