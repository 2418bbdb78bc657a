package races

import (
	"fmt"
	"math/rand"
	"net/url"
)

// SeedFunc turns a race's flag string into the seed published at start.
type SeedFunc func(flags string) (string, error)

// HexSeed is a random 32-bit value as 8 lowercase hex digits.
func HexSeed() string {
	return fmt.Sprintf("%08x", rand.Uint32())
}

// SeedURL sets the "s" query parameter of the flags URL to a fresh seed.
func SeedURL(flags string) (string, error) {
	u, err := url.Parse(flags)
	if err != nil {
		return "", fmt.Errorf("parse flags url: %w", err)
	}
	q := u.Query()
	q.Set("s", HexSeed())
	u.RawQuery = q.Encode()
	return u.String(), nil
}
