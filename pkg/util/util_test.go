package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeContains(t *testing.T) {
	assert.Equal(t, "%code%", LikeContains("code"))
	assert.Equal(t, "%100!%!_a!!b\\%", LikeContains(`100%_a!b\`))
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, SplitCSV(""))
	assert.Nil(t, SplitCSV("  "))
	assert.Equal(t, []string{"go", "rust"}, SplitCSV(" go, ,rust,"))
}

func TestRandomURLToken(t *testing.T) {
	a := RandomURLToken(32)
	b := RandomURLToken(32)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		SHA256Hex(""))
}

func TestPasswordHashing(t *testing.T) {
	h, err := HashPassword("s3cretpass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cretpass", h)
	assert.True(t, CheckPassword(h, "s3cretpass"))
	assert.False(t, CheckPassword(h, "wrong"))
}

func TestStrongPassword(t *testing.T) {
	assert.True(t, StrongPassword("abc12345"))
	assert.False(t, StrongPassword("abcdefgh"))
	assert.False(t, StrongPassword("12345678"))
}
