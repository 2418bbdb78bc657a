package races

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"racebot/internal/racetime"
)

const (
	BinWidth = 60 * time.Second
	MaxBins  = 6
)

// Standing is a ranked finisher.
type Standing struct {
	Place int
	Bin   int
	Entry LeaderboardEntry
}

// Finishers are entries that are neither forfeits nor spectators, fastest
// first. Equal times keep submission order.
func Finishers(entries []LeaderboardEntry) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Forfeit && !e.Spectator {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func Forfeits(entries []LeaderboardEntry) []LeaderboardEntry {
	var out []LeaderboardEntry
	for _, e := range entries {
		if e.Forfeit && !e.Spectator {
			out = append(out, e)
		}
	}
	return out
}

// Rank assigns places and bins to sorted finishers. The first finisher
// opens bin 1 ending BinWidth after its time; a slower finisher past the
// boundary opens the next bin, up to MaxBins.
func Rank(finishers []LeaderboardEntry) []Standing {
	out := make([]Standing, 0, len(finishers))
	var boundary time.Duration
	bin := 1
	for i, e := range finishers {
		switch {
		case i == 0:
			boundary = e.Time + BinWidth
		case e.Time > boundary && bin < MaxBins:
			bin++
			boundary = e.Time + BinWidth
		}
		out = append(out, Standing{Place: i + 1, Bin: bin, Entry: e})
	}
	return out
}

func (r *AsyncRace) Standings() []Standing {
	return Rank(Finishers(r.leaderboard))
}

// ---------- Text projections ----------

func (r *AsyncRace) ScheduledText(startStamp string) string {
	return fmt.Sprintf("Async race %s has been scheduled for %s", r.Name, startStamp)
}

// AnnouncementText is the opening post. endStamp is the platform rendering
// of the end time, empty when the race has none.
func (r *AsyncRace) AnnouncementText(endStamp string) string {
	var b strings.Builder
	b.WriteString("**" + r.Name + "**\n\n")
	if endStamp != "" {
		b.WriteString("Async race has started. You have until " + endStamp + " to submit your time.\n")
	} else {
		b.WriteString("Async race has started. You have until this thread is closed to submit your time.\n")
	}
	b.WriteString("To submit a time, use the command `?submit <time> <vod>`\n")
	b.WriteString("To forfeit, use the command `?forfeit` or `?ff`. No vod is required for a forfeit.\n")
	b.WriteString("To spectate, use the command `?spectate` or `?spec`.\n\n")
	b.WriteString("GLHF to all the runners.\n\n")
	b.WriteString(r.seed + "\n\n")
	return b.String()
}

func (r *AsyncRace) CounterText() string {
	return fmt.Sprintf("Number of participants: %d", r.Participants())
}

const emptySpoilerBoard = "Current Leaderboard:\nNo finishers yet!"

// SpoilerBoardText is the running leaderboard in the spoiler thread.
// Bins are only shown once the race is over.
func (r *AsyncRace) SpoilerBoardText() string {
	if len(Finishers(r.leaderboard)) == 0 && len(Forfeits(r.leaderboard)) == 0 {
		return emptySpoilerBoard
	}
	return "Current Leaderboard:\n" + r.boardBody(false)
}

func (r *AsyncRace) FinalBoardText() string {
	return "Final Leaderboard:\n" + r.boardBody(true)
}

func (r *AsyncRace) boardBody(bins bool) string {
	var b strings.Builder
	standings := r.Standings()
	if len(standings) == 0 {
		b.WriteString("No finishers!\n")
	}
	for _, s := range standings {
		fmt.Fprintf(&b, "%d. %s", s.Place, s.Entry)
		if bins {
			fmt.Fprintf(&b, " (Bin %d)", s.Bin)
		}
		b.WriteString("\n")
	}
	if ff := Forfeits(r.leaderboard); len(ff) > 0 {
		b.WriteString("\nForfeits:\n")
		for i, e := range ff {
			fmt.Fprintf(&b, "%d. %s\n", i+1, e)
		}
	}
	return b.String()
}

// ---------- CSV ----------

// ExportFilename is the attachment name of a race's CSV export.
func (r *AsyncRace) ExportFilename() string {
	return r.Name + "_leaderboard.csv"
}

// ExportCSV writes one row per runner. withBins adds the Bin column used by
// on-demand exports of a running race.
func (r *AsyncRace) ExportCSV(withBins bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Runner", "Time", "VOD"}
	if withBins {
		header = append(header, "Bin")
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, s := range r.Standings() {
		row := []string{s.Entry.RunnerName, racetime.Format(s.Entry.Time), s.Entry.Proof}
		if withBins {
			row = append(row, strconv.Itoa(s.Bin))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	for _, e := range Forfeits(r.leaderboard) {
		row := []string{e.RunnerName, "DNF", ""}
		if withBins {
			row = append(row, "")
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
