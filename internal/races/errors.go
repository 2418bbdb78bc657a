package races

import (
	"errors"

	"racebot/internal/racetime"
)

var (
	ErrVenueBusy               = errors.New("venue already hosts an active race")
	ErrAlreadyActiveOrFinished = errors.New("race is already active or finished")
	ErrNotActive               = errors.New("race is not active")
	ErrNotStarted              = errors.New("race has not started")
	ErrAlreadyStarted          = errors.New("race has already started")
	ErrUnknownRunner           = errors.New("runner is not in this race")
	ErrDuplicateSubmission     = errors.New("runner already has an entry")
	ErrMissingRequiredProof    = errors.New("a proof link is required")
	ErrPersistenceMismatch     = errors.New("persisted snapshot does not match what was written")
	ErrUnknownRace             = errors.New("race not found")
	ErrAlreadyEntered          = errors.New("runner already entered")
	ErrAlreadyDone             = errors.New("runner already finished")
	ErrNoRunners               = errors.New("race has no runners")
)

// IsUserError reports submission errors that are answered with a private
// notice to the runner and not logged as failures.
func IsUserError(err error) bool {
	return errors.Is(err, racetime.ErrInvalidTimeFormat) ||
		errors.Is(err, ErrDuplicateSubmission) ||
		errors.Is(err, ErrMissingRequiredProof) ||
		errors.Is(err, ErrNotActive)
}
