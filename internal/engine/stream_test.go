package engine

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
)

func decodeAll(t *testing.T, lines [][]byte) []domain.StreamEvent {
	t.Helper()
	var events []domain.StreamEvent
	for _, line := range lines {
		var ev domain.StreamEvent
		require.NoError(t, json.Unmarshal(line, &ev))
		events = append(events, ev)
	}
	return events
}

// Разбиение потока на чанки в произвольном месте не должно менять
// набор декодированных событий.
func TestLineDecoder_SplitAtEveryOffset(t *testing.T) {
	payload := []byte(`{"type":"progress","current":1,"total":2,"probe":"VAT"}` + "\n" + `{"type":"complete"}` + "\n")

	for cut := 0; cut <= len(payload); cut++ {
		t.Run(fmt.Sprintf("cut=%d", cut), func(t *testing.T) {
			var d LineDecoder
			lines := d.Push(payload[:cut])
			lines = append(lines, d.Push(payload[cut:])...)
			if rest := d.Flush(); rest != nil {
				lines = append(lines, rest)
			}

			events := decodeAll(t, lines)
			require.Len(t, events, 2)
			assert.Equal(t, domain.EventTypeProgress, events[0].Type)
			assert.Equal(t, 1, events[0].Current)
			assert.Equal(t, 2, events[0].Total)
			assert.Equal(t, "VAT", events[0].Probe)
			assert.Equal(t, domain.EventTypeComplete, events[1].Type)
		})
	}
}

func TestLineDecoder_FlushReturnsUnterminatedTail(t *testing.T) {
	var d LineDecoder

	lines := d.Push([]byte(`{"type":"progress","current":1,"total":3}` + "\n" + `{"type":"complete"}`))
	require.Len(t, lines, 1)

	tail := d.Flush()
	require.NotNil(t, tail, "финальная строка без \\n — тоже полная строка")
	assert.JSONEq(t, `{"type":"complete"}`, string(tail))
	assert.Nil(t, d.Flush(), "повторный Flush пуст")
}

func TestLineDecoder_SkipsBlankLines(t *testing.T) {
	var d LineDecoder

	lines := d.Push([]byte("\n  \n{\"type\":\"complete\"}\n\n"))
	require.Len(t, lines, 1)
	assert.JSONEq(t, `{"type":"complete"}`, string(lines[0]))
}
