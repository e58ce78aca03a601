package upstream

import (
	"bufio"
	"bytes"
	"net/http"

	"antigravity2api-go/internal/constants"
)

var ssePrefix = []byte("data:")

// Stream iterates over the data payloads of an upstream SSE response.
type Stream struct {
	resp    *http.Response
	scanner *bufio.Scanner
}

// NewStream wraps an SSE response body.
func NewStream(resp *http.Response) *Stream {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, constants.SSEScannerInitialBufferSize), constants.SSEScannerMaxBufferSize)
	return &Stream{resp: resp, scanner: scanner}
}

// Next returns the next event payload. The second return is false when the
// stream is exhausted or failed; check Err afterwards.
func (s *Stream) Next() ([]byte, bool) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if !bytes.HasPrefix(line, ssePrefix) {
			continue
		}
		payload := bytes.TrimSpace(line[len(ssePrefix):])
		if len(payload) == 0 {
			continue
		}
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, true
	}
	return nil, false
}

// Err reports a scan failure, nil on clean EOF.
func (s *Stream) Err() error {
	return s.scanner.Err()
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	return s.resp.Body.Close()
}
