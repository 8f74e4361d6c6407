package runner

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"soulsdex/internal/model"
)

// LineError is an operations line that could not be decoded.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ReadOperations decodes one operation per non-empty line. Lines starting
// with '#' are comments.
func ReadOperations(r io.Reader) ([]model.Operation, []LineError, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var ops []model.Operation
	var bad []LineError
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		var op model.Operation
		if err := json.Unmarshal(raw, &op); err != nil {
			bad = append(bad, LineError{Line: line, Err: err})
			continue
		}
		if op.Op == "" {
			bad = append(bad, LineError{Line: line, Err: fmt.Errorf("missing op")})
			continue
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan ops: %w", err)
	}
	return ops, bad, nil
}

// ReadOperationsFile opens path and reads it with ReadOperations.
func ReadOperationsFile(path string) ([]model.Operation, []LineError, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open ops: %w", err)
	}
	defer file.Close()
	return ReadOperations(file)
}
