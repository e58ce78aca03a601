package logging

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestTailSinceCursor(t *testing.T) {
	h := &Hub{
		history: make([]StreamEntry, 0, 4),
		maxTail: 3,
		feed:    make(chan StreamEntry, 16),
		stop:    make(chan struct{}),
	}
	h.Publish("info", "one", nil)
	h.Publish("info", "two", nil)
	h.Publish("warn", "three", nil)

	all := h.TailSince(0)
	assert.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Message)

	rest := h.TailSince(all[1].Seq)
	assert.Len(t, rest, 1)
	assert.Equal(t, "three", rest[0].Message)
}

func TestTailIsBounded(t *testing.T) {
	h := &Hub{
		history: make([]StreamEntry, 0, 4),
		maxTail: 3,
		feed:    make(chan StreamEntry, 16),
		stop:    make(chan struct{}),
	}
	for i := 0; i < 10; i++ {
		h.Publish("info", "msg", nil)
	}
	assert.Len(t, h.TailSince(0), 3)
	assert.Equal(t, uint64(8), h.TailSince(0)[0].Seq)
}

func TestHookFlattensErrors(t *testing.T) {
	h := &Hub{
		history: make([]StreamEntry, 0, 4),
		maxTail: 10,
		feed:    make(chan StreamEntry, 16),
		stop:    make(chan struct{}),
	}
	hk := hubHook{hub: h}
	entry := &log.Entry{
		Level:   log.WarnLevel,
		Message: "refresh failed",
		Data:    log.Fields{"error": assert.AnError, "index": 2},
	}
	assert.NoError(t, hk.Fire(entry))

	tail := h.TailSince(0)
	assert.Len(t, tail, 1)
	assert.Equal(t, "warn", tail[0].Level)
	assert.Equal(t, assert.AnError.Error(), tail[0].Fields["error"])
	assert.Equal(t, 2, tail[0].Fields["index"])
}
