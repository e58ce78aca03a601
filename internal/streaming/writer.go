package streaming

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type writerState int

const (
	stateFresh writerState = iota
	stateStreaming
	stateClosed
)

// Writer serializes SSE frames to the client and tracks whether the response
// has started, so the caller knows if an error can still go out as JSON.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	state   writerState
}

func NewWriter(w http.ResponseWriter) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// Started reports whether any SSE frame has been written.
func (sw *Writer) Started() bool { return sw.state != stateFresh }

// Closed reports whether the stream has been terminated.
func (sw *Writer) Closed() bool { return sw.state == stateClosed }

func (sw *Writer) begin() {
	if sw.state != stateFresh {
		return
	}
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	sw.w.WriteHeader(http.StatusOK)
	sw.state = stateStreaming
}

// WriteData writes one unnamed SSE data frame.
func (sw *Writer) WriteData(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	return sw.WriteRawData(data)
}

// WriteRawData writes pre-serialized JSON as one data frame.
func (sw *Writer) WriteRawData(data []byte) error {
	if sw.state == stateClosed {
		return fmt.Errorf("write on closed stream")
	}
	sw.begin()
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return err
	}
	sw.flush()
	return nil
}

// WriteEvent writes one named SSE event frame.
func (sw *Writer) WriteEvent(event string, payload any) error {
	if sw.state == stateClosed {
		return fmt.Errorf("write on closed stream")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	sw.begin()
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	sw.flush()
	return nil
}

// WriteDone writes the OpenAI terminator frame.
func (sw *Writer) WriteDone() error {
	if sw.state == stateClosed {
		return fmt.Errorf("write on closed stream")
	}
	sw.begin()
	if _, err := fmt.Fprint(sw.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	sw.flush()
	return nil
}

// Close marks the stream terminated. Further writes fail.
func (sw *Writer) Close() { sw.state = stateClosed }

func (sw *Writer) flush() {
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}
