package sheets

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"racebot/internal/archive"
	"racebot/internal/racetime"
)

// SheetResults holds one row per runner of every finished async race:
// race_id, race_name, place, runner, time, vod, bin, finished_at.
const SheetResults = "Results"

var _ archive.Archiver = (*Client)(nil)

// Archive appends the final standings of a race. A race whose id is
// already in the sheet is skipped, so retried archiving does not duplicate
// rows.
func (c *Client) Archive(ctx context.Context, r archive.Result) error {
	done, err := c.ArchivedRaceIDs(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", SheetResults, err)
	}
	if done[r.RaceID] {
		return nil
	}
	rows := resultRows(r)
	if len(rows) == 0 {
		return nil
	}
	if err := c.values.appendRows(ctx, SheetResults, rows); err != nil {
		return fmt.Errorf("append %s: %w", SheetResults, err)
	}
	return nil
}

func resultRows(r archive.Result) [][]interface{} {
	id := strconv.FormatInt(r.RaceID, 10)
	at := r.FinishedAt.UTC().Format(time.RFC3339)
	var rows [][]interface{}
	for _, s := range r.Standings {
		rows = append(rows, []interface{}{
			id, r.Name, s.Place, s.Entry.RunnerName, racetime.Format(s.Entry.Time), s.Entry.Proof, s.Bin, at,
		})
	}
	for _, e := range r.Forfeits {
		rows = append(rows, []interface{}{id, r.Name, "", e.RunnerName, "DNF", "", "", at})
	}
	return rows
}

// ArchivedRaceIDs lists race ids present in the results sheet.
func (c *Client) ArchivedRaceIDs(ctx context.Context) (map[int64]bool, error) {
	values, err := c.values.readAll(ctx, SheetResults)
	if err != nil {
		return nil, err
	}
	out := map[int64]bool{}
	// header row at index 0
	for i := 1; i < len(values); i++ {
		id, err := strconv.ParseInt(get(values[i], 0), 10, 64)
		if err != nil {
			continue
		}
		out[id] = true
	}
	return out, nil
}

func get(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}
