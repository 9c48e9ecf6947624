package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/code-harmonizer/internal/kvstore"
	"github.com/bizmatters/code-harmonizer/internal/models"
)

type rawEvent struct {
	EventType string          `json:"event_type"`
	RunID     string          `json:"run_id"`
	Data      json.RawMessage `json:"data"`
}

func readEvents(t *testing.T, serverURL string) []rawEvent {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/api/ws/harmonize"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var events []rawEvent
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev rawEvent
		if err := conn.ReadJSON(&ev); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			return events
		}
		events = append(events, ev)
	}
}

func TestStreamHarmonize(t *testing.T) {
	router, workspace := newTestRouter(t, kvstore.NewMemoryBackend(0))
	ctx := context.Background()
	workspace.SetSource(ctx, "var x = 1;")
	require.NoError(t, workspace.SetSelection(ctx, []string{"optimize-performance"}))

	server := httptest.NewServer(router)
	defer server.Close()

	events := readEvents(t, server.URL)
	require.GreaterOrEqual(t, len(events), 2)

	runID := events[0].RunID
	assert.NotEmpty(t, runID)

	var lastOverall float64
	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, models.EventStepUpdate, ev.EventType)
		assert.Equal(t, runID, ev.RunID)
		var progress struct {
			Overall float64 `json:"overall"`
		}
		require.NoError(t, json.Unmarshal(ev.Data, &progress))
		assert.GreaterOrEqual(t, progress.Overall, lastOverall)
		lastOverall = progress.Overall
	}
	assert.Equal(t, 100.0, lastOverall)

	final := events[len(events)-1]
	assert.Equal(t, models.EventCompleted, final.EventType)
	var result struct {
		HarmonizedCode string `json:"harmonizedCode"`
	}
	require.NoError(t, json.Unmarshal(final.Data, &result))
	assert.Equal(t, "const x = 1;", result.HarmonizedCode)

	entry, ok := workspace.Audit().Current()
	require.True(t, ok)
	assert.Equal(t, "const x = 1;", entry.HarmonizedCode)
}

func TestStreamHarmonize_NotReady(t *testing.T) {
	router, workspace := newTestRouter(t, kvstore.NewMemoryBackend(0))
	workspace.SetSource(context.Background(), "   ")

	server := httptest.NewServer(router)
	defer server.Close()

	events := readEvents(t, server.URL)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventNotReady, events[0].EventType)
	assert.Contains(t, string(events[0].Data), `"reason":"no_source"`)
}
