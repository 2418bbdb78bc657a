package store

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"racebot/internal/models"
)

func EncodeRace(rec models.RaceRecord) ([]byte, error) {
	b, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("encode race %d: %w", rec.RaceID, err)
	}
	return b, nil
}

func DecodeRace(b []byte) (models.RaceRecord, error) {
	var rec models.RaceRecord
	if err := msgpack.Unmarshal(b, &rec); err != nil {
		return models.RaceRecord{}, fmt.Errorf("decode race: %w", err)
	}
	return rec, nil
}

func EncodeBoard(rec models.BoardRecord) ([]byte, error) {
	b, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("encode board %s: %w", rec.Key, err)
	}
	return b, nil
}

func DecodeBoard(b []byte) (models.BoardRecord, error) {
	var rec models.BoardRecord
	if err := msgpack.Unmarshal(b, &rec); err != nil {
		return models.BoardRecord{}, fmt.Errorf("decode board: %w", err)
	}
	return rec, nil
}
