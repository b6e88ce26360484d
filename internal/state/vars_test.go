package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotengine/pkg/exception"
)

func TestVarsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vars.txt")
	require.NoError(t, WriteVars(path, []int{0, 2, 1}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "3\n0\n2\n1\n", string(raw))

	got, err := ReadVars(path)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 1}, got)
}

func TestReadVarsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"short":       "3\n0\n1\n",
		"non-numeric": "2\n0\nx\n",
		"bad count":   "two\n0\n1\n",
		"negative":    "-1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "vars.txt")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := ReadVars(path)
			assert.ErrorIs(t, err, exception.ErrMalformedVars)
		})
	}
}

func TestReadVarsToleratesWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vars.txt")
	require.NoError(t, os.WriteFile(path, []byte("2\r\n 1 \r\n0"), 0o644))
	got, err := ReadVars(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, got)
}

func TestReadVarsMissingFile(t *testing.T) {
	_, err := ReadVars(filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
