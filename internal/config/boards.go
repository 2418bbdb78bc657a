package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Board describes one standing leaderboard and the channels and roles it
// works with.
type Board struct {
	Key                string `yaml:"key"`
	Channel            int64  `yaml:"channel"`
	LeaderboardChannel int64  `yaml:"leaderboard_channel"`
	SpoilerChannel     int64  `yaml:"spoiler_channel"`
	RunnerRole         string `yaml:"runner_role"`
	AdminRole          string `yaml:"admin_role"`
	RequiredRole       string `yaml:"required_role"`
}

type boardsFile struct {
	Boards []Board `yaml:"boards"`
}

// LoadBoards reads the boards file. An empty path means no boards.
func LoadBoards(path string) ([]Board, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("boards file: %w", err)
	}
	return ParseBoards(raw)
}

func ParseBoards(raw []byte) ([]Board, error) {
	var f boardsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("boards file: %w", err)
	}
	seen := map[string]bool{}
	for i, b := range f.Boards {
		switch {
		case b.Key == "":
			return nil, fmt.Errorf("board %d: key is empty", i)
		case seen[b.Key]:
			return nil, fmt.Errorf("board %s: duplicate key", b.Key)
		case b.Channel == 0 || b.LeaderboardChannel == 0 || b.SpoilerChannel == 0:
			return nil, fmt.Errorf("board %s: channel, leaderboard_channel and spoiler_channel are required", b.Key)
		case b.RunnerRole == "" || b.AdminRole == "":
			return nil, fmt.Errorf("board %s: runner_role and admin_role are required", b.Key)
		}
		seen[b.Key] = true
	}
	return f.Boards, nil
}
