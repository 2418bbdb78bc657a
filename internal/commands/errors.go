package commands

import (
	"errors"
	"fmt"

	"racebot/internal/boards"
	"racebot/internal/chat"
	"racebot/internal/races"
	"racebot/internal/racetime"
)

// notice is a rejection whose text goes to the author as is.
type notice struct{ text string }

func (n *notice) Error() string { return n.text }

func noticef(format string, args ...any) error {
	return &notice{text: fmt.Sprintf(format, args...)}
}

var explanations = []struct {
	err  error
	text string
}{
	{races.ErrVenueBusy, "There is already a race running in this channel."},
	{races.ErrAlreadyActiveOrFinished, "That race has already started or finished."},
	{races.ErrNotActive, "That race is not active."},
	{races.ErrUnknownRace, "There is no race here."},
	{races.ErrAlreadyStarted, "The race has already started."},
	{races.ErrNotStarted, "The race has not started yet."},
	{races.ErrUnknownRunner, "You have not joined this race."},
	{races.ErrAlreadyEntered, "You have already joined this race."},
	{races.ErrAlreadyDone, "You have already finished this race."},
	{races.ErrNoRunners, "Nobody has joined the race yet."},
	{boards.ErrNotCreated, "There is no leaderboard here yet."},
	{boards.ErrAlreadyParticipated, "You already have the relevant role."},
	{chat.ErrNotFound, "Could not find that on the server."},
	{chat.ErrUnsupported, "That is not available on this chat platform."},
}

// explain maps a contract error to the text shown to the author. known is
// false for failures the operator should look at.
func explain(err error) (text string, known bool) {
	for _, e := range explanations {
		if errors.Is(err, e.err) {
			return e.text, true
		}
	}
	return "Something went wrong. The bot operator has been notified.", false
}

// answered drops errors the registry or a board already answered with a
// DM of its own.
func answered(err error) error {
	if races.IsUserError(err) {
		return nil
	}
	return err
}

func answeredOnBoard(err error) error {
	if errors.Is(err, boards.ErrRoleRequired) || errors.Is(err, boards.ErrAlreadyParticipated) ||
		errors.Is(err, racetime.ErrInvalidTimeFormat) {
		return nil
	}
	return err
}
