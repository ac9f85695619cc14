package index

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// JSONLSource reads records from a JSON-lines file, one record per line.
// Lines are decoded lazily so large exports do not load into memory at
// once. A malformed line surfaces as a parse error and the source keeps
// going on the next line; a scanner failure ends the source for good and
// reports ErrSourceFailed.
type JSONLSource struct {
	file    *os.File
	scanner *bufio.Scanner
	line    int
	failed  error
}

// OpenJSONL opens a JSON-lines record file
func OpenJSONL(path string) (*JSONLSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record file: %w", err)
	}

	scanner := bufio.NewScanner(f)
	// Docstrings can make single records large
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	return &JSONLSource{file: f, scanner: scanner}, nil
}

func (s *JSONLSource) Next() (*Record, error) {
	if s.failed != nil {
		return nil, s.failed
	}

	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", s.line, err)
		}
		return &rec, nil
	}

	// A scanner error (oversized line, I/O failure) is unrecoverable:
	// the scanner stops for good, so the source is terminal from here.
	if err := s.scanner.Err(); err != nil {
		s.failed = fmt.Errorf("%w: line %d: %v", ErrSourceFailed, s.line+1, err)
		return nil, s.failed
	}
	return nil, io.EOF
}

// Close closes the underlying file
func (s *JSONLSource) Close() error {
	return s.file.Close()
}
