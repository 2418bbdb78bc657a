package sheets

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

// valueTable is the slice of the Sheets values API the ledger needs.
type valueTable interface {
	readAll(ctx context.Context, sheet string) ([][]interface{}, error)
	appendRows(ctx context.Context, sheet string, rows [][]interface{}) error
}

type Client struct {
	values        valueTable
	spreadsheetID string
}

func New(ctx context.Context, serviceAccountJSONPath, spreadsheetID string) (*Client, error) {
	if _, err := os.Stat(serviceAccountJSONPath); err != nil {
		return nil, fmt.Errorf("service account json: %w", err)
	}
	srv, err := sheetsv4.NewService(ctx,
		option.WithCredentialsFile(serviceAccountJSONPath),
		option.WithScopes(sheetsv4.SpreadsheetsScope),
	)
	if err != nil {
		return nil, err
	}
	return &Client{values: &serviceTable{srv: srv, spreadsheetID: spreadsheetID}, spreadsheetID: spreadsheetID}, nil
}

func (c *Client) SpreadsheetID() string { return c.spreadsheetID }

type serviceTable struct {
	srv           *sheetsv4.Service
	spreadsheetID string
}

func (t *serviceTable) readAll(ctx context.Context, sheet string) ([][]interface{}, error) {
	resp, err := t.srv.Spreadsheets.Values.Get(t.spreadsheetID, sheet+"!A:Z").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (t *serviceTable) appendRows(ctx context.Context, sheet string, rows [][]interface{}) error {
	vr := &sheetsv4.ValueRange{Values: rows}
	_, err := t.srv.Spreadsheets.Values.Append(t.spreadsheetID, sheet+"!A:Z", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}
