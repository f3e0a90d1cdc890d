package db

import (
	"context"
	"fmt"
	"strings"

	"milda_bot/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsStore keeps tickets in a Google Sheets worksheet. Row 1 is the
// header; Location is the 1-based sheet row.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsStore authenticates with a service-account JSON key.
func NewSheetsStore(ctx context.Context, spreadsheetID, sheetName string, credentialsJSON []byte, opts ...option.ClientOption) (*SheetsStore, error) {
	base := []option.ClientOption{
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	}
	return newSheetsStore(ctx, spreadsheetID, sheetName, append(base, opts...)...)
}

func newSheetsStore(ctx context.Context, spreadsheetID, sheetName string, opts ...option.ClientOption) (*SheetsStore, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	return &SheetsStore{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

func (s *SheetsStore) tableRange() string {
	return fmt.Sprintf("%s!A:G", s.sheetName)
}

func (s *SheetsStore) Append(ctx context.Context, t models.Ticket) error {
	values := t.Values()
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.tableRange(), &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append ticket %s: %w", t.ID, err)
	}
	return nil
}

func (s *SheetsStore) FindByID(ctx context.Context, id string) (models.Row, error) {
	rows, err := s.ReadAll(ctx)
	if err != nil {
		return models.Row{}, err
	}
	return findFirst(rows, id)
}

func (s *SheetsStore) ReadAll(ctx context.Context) ([]models.Row, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.tableRange()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	return recordsFromValues(resp.Values), nil
}

func (s *SheetsStore) UpdateStatus(ctx context.Context, location int, status models.Status) error {
	if location < 2 {
		return fmt.Errorf("update status: row %d is not a ticket row", location)
	}
	cell := fmt.Sprintf("%s!%s%d", s.sheetName, columnLetter(models.StatusColumn), location)
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, cell, &sheets.ValueRange{
		Values: [][]interface{}{{string(status)}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update status of row %d: %w", location, err)
	}
	return nil
}

// recordsFromValues maps every data row onto the header names in row 1.
// Blank rows keep their position so locations stay aligned with the sheet.
func recordsFromValues(values [][]interface{}) []models.Row {
	if len(values) == 0 {
		return nil
	}
	header := make([]string, len(values[0]))
	for i, h := range values[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(h))
	}

	var out []models.Row
	for i, raw := range values[1:] {
		rec := make(map[string]string, len(header))
		empty := true
		for j, name := range header {
			if j < len(raw) {
				v := strings.TrimSpace(fmt.Sprint(raw[j]))
				rec[name] = v
				if v != "" {
					empty = false
				}
			}
		}
		if empty {
			continue
		}
		out = append(out, models.Row{Location: i + 2, Ticket: models.FromRecord(rec)})
	}
	return out
}

func columnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
