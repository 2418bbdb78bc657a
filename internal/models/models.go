package models

import "time"

type User struct {
	ID          int64
	DisplayName string
}

type Role struct {
	ID   int64
	Name string
}

// RaceRecord is the persisted form of an async race. Platform objects are
// stored as numeric ids and resolved again on load.
type RaceRecord struct {
	RaceID            int64         `msgpack:"race_id"`
	VenueID           int64         `msgpack:"venue_id"`
	RaceThreadID      int64         `msgpack:"race_thread_id"`
	SpoilerThreadID   int64         `msgpack:"spoiler_thread_id"`
	Name              string        `msgpack:"name"`
	OwnerID           int64         `msgpack:"owner_id"`
	Flags             string        `msgpack:"flags"`
	StartTime         *time.Time    `msgpack:"start_time"`
	EndTime           *time.Time    `msgpack:"end_time"`
	Role              string        `msgpack:"race_role"`
	Seed              string        `msgpack:"seed"`
	State             string        `msgpack:"state"`
	AnnouncementMsgID int64         `msgpack:"announcement_message_id"`
	CounterMsgID      int64         `msgpack:"leaderboard_message_id"`
	SpoilerBoardMsgID int64         `msgpack:"spoiler_leaderboard_message_id"`
	Leaderboard       []EntryRecord `msgpack:"leaderboard"`
}

type EntryRecord struct {
	RunnerID   int64  `msgpack:"runner_id"`
	RunnerName string `msgpack:"runner_name"`
	RawTime    string `msgpack:"runner_time"`
	Seconds    int64  `msgpack:"seconds"`
	Proof      string `msgpack:"vod"`
	Forfeit    bool   `msgpack:"is_forfeit"`
	Spectator  bool   `msgpack:"is_spectator"`
}

// BoardRecord is the persisted form of a standing leaderboard.
type BoardRecord struct {
	Key          string           `msgpack:"key"`
	Title        string           `msgpack:"title"`
	Finishers    []FinisherRecord `msgpack:"finishers"`
	Forfeiters   []int64          `msgpack:"forfeiters"`
	BoardMsgID   int64            `msgpack:"board_message_id"`
	CounterMsgID int64            `msgpack:"counter_message_id"`
}

type FinisherRecord struct {
	RunnerID int64  `msgpack:"runner_id"`
	Name     string `msgpack:"name"`
	Seconds  int64  `msgpack:"seconds"`
}
