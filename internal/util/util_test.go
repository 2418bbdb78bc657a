package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Runner One", SanitizeName("Runner (One)"))
	assert.Equal(t, "abc", SanitizeName("a-b-c"))
	assert.Equal(t, "plain", SanitizeName("plain"))
}

func TestExportToken(t *testing.T) {
	tok := ExportToken("secret", "42")
	assert.Len(t, tok, 64)
	assert.True(t, ValidExportToken("secret", "42", tok))
	assert.False(t, ValidExportToken("secret", "43", tok))
	assert.False(t, ValidExportToken("other", "42", tok))
}

func TestNormalizeBool(t *testing.T) {
	assert.True(t, NormalizeBool(" YES "))
	assert.True(t, NormalizeBool("1"))
	assert.False(t, NormalizeBool("no"))
	assert.False(t, NormalizeBool(""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "ab", Truncate("ab", 10))
	// "é" is two bytes; cutting inside it backs off
	assert.Equal(t, "a", Truncate("aé", 2))
}
