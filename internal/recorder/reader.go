package recorder

import (
	"bufio"
	"io"

	"github.com/bytedance/sonic"
)

const maxLineSize = 1 << 20

// ReadAll decodes every JSON line in r.
func ReadAll(r io.Reader) ([]map[string]any, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var out []map[string]any
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		rec := map[string]any{}
		if err := sonic.Unmarshal(line, &rec); err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
