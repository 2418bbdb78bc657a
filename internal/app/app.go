package app

import (
	"github.com/rs/zerolog"

	"racebot/internal/archive"
	"racebot/internal/chat"
	"racebot/internal/config"
	"racebot/internal/store"
)

// App carries the process-wide dependencies. It is built once in main and
// passed by pointer to every component that needs them.
type App struct {
	Config   config.Config
	Platform chat.Platform
	Races    store.Store
	Boards   store.Store
	Notifier chat.Notifier
	Archiver archive.Archiver
	Log      zerolog.Logger
}

// Logger returns a sub-logger tagged with the component name.
func (a *App) Logger(component string) zerolog.Logger {
	return a.Log.With().Str("component", component).Logger()
}

// IsAdmin reports whether a user is a bot admin, either by id or by holding
// one of the configured admin roles.
func (a *App) IsAdmin(userID int64, roles []string) bool {
	if a.Config.AdminIDs[userID] {
		return true
	}
	for _, r := range roles {
		for _, admin := range a.Config.AdminRoles {
			if r == admin {
				return true
			}
		}
	}
	return false
}
