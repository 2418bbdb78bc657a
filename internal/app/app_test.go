package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"racebot/internal/config"
)

func TestIsAdmin(t *testing.T) {
	a := &App{Config: config.Config{
		AdminRoles: []string{"admin", "arbiter"},
		AdminIDs:   map[int64]bool{7: true},
	}}

	tests := []struct {
		name  string
		id    int64
		roles []string
		want  bool
	}{
		{"by id", 7, nil, true},
		{"by role", 1, []string{"runner", "arbiter"}, true},
		{"neither", 1, []string{"runner"}, false},
		{"role names are exact", 1, []string{"Admin"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.IsAdmin(tt.id, tt.roles))
		})
	}
}
