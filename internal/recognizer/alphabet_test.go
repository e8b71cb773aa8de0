package recognizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAlphabet(t *testing.T) {
	a := DefaultAlphabet()
	assert.Equal(t, 37, a.Size())
	assert.Equal(t, 0, a.Blank)
	assert.Equal(t, "0", a.Symbol(1))
	assert.Equal(t, "z", a.Symbol(36))
	assert.Empty(t, a.Symbol(0))
	assert.Empty(t, a.Symbol(99))
}

func TestOpenVINOAlphabet(t *testing.T) {
	a := OpenVINOAlphabet()
	assert.Equal(t, 37, a.Size())
	assert.Equal(t, 36, a.Blank)
	assert.Equal(t, "0", a.Symbol(0))
	assert.Empty(t, a.Symbol(36))
	idx, ok := a.Index("a")
	require.True(t, ok)
	assert.Equal(t, 10, idx)
	_, ok = a.Index("#")
	assert.False(t, ok)
}

func TestNewAlphabet_Errors(t *testing.T) {
	_, err := NewAlphabet("abca", -1)
	require.ErrorIs(t, err, ErrAlphabet)

	_, err = NewAlphabet("ab", 5)
	require.ErrorIs(t, err, ErrAlphabet)

	_, err = NewAlphabet("", -1)
	require.ErrorIs(t, err, ErrAlphabet)
}

func writeAlphabet(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "alphabet.txt")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadAlphabet_BlankPrepended(t *testing.T) {
	p := writeAlphabet(t, "\uFEFFa\r\nb\n\nc\n")
	a, err := LoadAlphabet(p)
	require.NoError(t, err)
	assert.Equal(t, []string{BlankToken, "a", "b", "c"}, a.Symbols)
	assert.Equal(t, 0, a.Blank)
}

func TestLoadAlphabet_ExplicitBlank(t *testing.T) {
	p := writeAlphabet(t, strings.Join([]string{"x", "y", BlankToken}, "\n"))
	a, err := LoadAlphabet(p)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Blank)
	assert.Equal(t, "y", a.Symbol(1))
}

func TestLoadAlphabet_Errors(t *testing.T) {
	_, err := LoadAlphabet(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)

	p := writeAlphabet(t, BlankToken+"\na\n"+BlankToken+"\n")
	_, err = LoadAlphabet(p)
	require.ErrorIs(t, err, ErrAlphabet)

	p = writeAlphabet(t, "a\na\n")
	_, err = LoadAlphabet(p)
	require.ErrorIs(t, err, ErrAlphabet)
}
