// Package sheets appends confirmed schedule registrations to a Google
// spreadsheet.
//
// Authentication uses a service account credentials file; the spreadsheet
// must be shared with the service account's email.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2/google"
	sheetsapi "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"
)

// Errors returned by the client constructor.
var (
	// ErrNoSpreadsheetID is returned when the spreadsheet ID is missing.
	ErrNoSpreadsheetID = errors.New("sheets: spreadsheet ID required")

	// ErrNoCredentials is returned when the credentials file is missing.
	ErrNoCredentials = errors.New("sheets: credentials file required")
)

// DefaultRange is the sheet range rows are appended under.
const DefaultRange = "Sheet1!A:C"

// Config configures a Client.
type Config struct {
	// SpreadsheetID is the target spreadsheet.
	SpreadsheetID string

	// CredentialsFile is the path to the service account JSON key.
	CredentialsFile string

	// Range is the append range. Empty means DefaultRange.
	Range string
}

// Client appends rows to one spreadsheet.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	appendRange   string
	logger        *slog.Logger
}

// New creates a sheets client from service account credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, ErrNoSpreadsheetID
	}
	if cfg.CredentialsFile == "" {
		return nil, ErrNoCredentials
	}

	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets: read credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("sheets: parse credentials: %w", err)
	}

	svc, err := sheetsapi.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}

	appendRange := cfg.Range
	if appendRange == "" {
		appendRange = DefaultRange
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		appendRange:   appendRange,
		logger:        slog.Default().With("component", "sheets"),
	}, nil
}

// AppendRow appends one row of cells to the spreadsheet.
func (c *Client) AppendRow(ctx context.Context, cells []string) error {
	values := make([]interface{}, len(cells))
	for i, cell := range cells {
		values[i] = cell
	}

	vr := &sheetsapi.ValueRange{
		Values: [][]interface{}{values},
	}

	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.appendRange, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: append row: %w", err)
	}

	c.logger.Info("row appended",
		"spreadsheet", c.spreadsheetID,
		"cells", len(cells),
	)
	return nil
}
