package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func NormalizeBool(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "yes", "true", "1", "y", "on":
		return true
	default:
		return false
	}
}

func HMACSHA256Hex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// ExportToken signs a race id for the public CSV export link.
func ExportToken(secret, raceID string) string {
	return HMACSHA256Hex(secret, "export:"+raceID)
}

// ValidExportToken compares in constant time.
func ValidExportToken(secret, raceID, token string) bool {
	return hmac.Equal([]byte(ExportToken(secret, raceID)), []byte(token))
}

// SanitizeName drops the characters the leaderboards use as separators.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '(', ')', '-':
			return -1
		}
		return r
	}, name)
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
