package core

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// WriteFindings streams findings as JSON lines, one finding per line.
func WriteFindings(w io.Writer, findings []Finding) error {
	enc := json.NewEncoder(w)
	for i := range findings {
		if err := enc.Encode(&findings[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReadFindings decodes the output of WriteFindings. Blank lines are skipped.
func ReadFindings(r io.Reader) ([]Finding, error) {
	var out []Finding
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for n := 1; sc.Scan(); n++ {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var f Finding
		if err := json.Unmarshal(line, &f); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, f)
	}
	return out, sc.Err()
}

// DecodeResult reads a result written by "scout scan --json".
func DecodeResult(r io.Reader) (*Result, error) {
	var res Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
