package state

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"spotengine/pkg/exception"
)

// WriteVars persists slot states: the count on the first line, then one
// state per line in slot order.
func WriteVars(path string, status []int) error {
	var buf bytes.Buffer
	buf.WriteString(strconv.Itoa(len(status)))
	buf.WriteByte('\n')
	for _, s := range status {
		buf.WriteString(strconv.Itoa(s))
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// ReadVars loads slot states written by WriteVars. A short or non-numeric
// file fails as a whole.
func ReadVars(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	next := func() (int, bool, error) {
		if !scanner.Scan() {
			return 0, false, scanner.Err()
		}
		v, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err != nil {
			return 0, true, fmt.Errorf("%w: %w", exception.ErrMalformedVars, err)
		}
		return v, true, nil
	}

	n, ok, err := next()
	if err != nil {
		return nil, err
	}
	if !ok || n < 0 {
		return nil, fmt.Errorf("%w: missing count", exception.ErrMalformedVars)
	}

	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		v, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: got %d of %d entries", exception.ErrMalformedVars, i, n)
		}
		out = append(out, v)
	}
	return out, nil
}
