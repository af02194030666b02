package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
	eventsmem "github.com/sgttomas/chirality-semantic-framework/pkg/adapters/events/memory"
)

func TestHandleRunStreamFiltersByRunID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	bus := eventsmem.NewBus()
	defer bus.Close()

	router := gin.New()
	router.GET("/runs/:id/ws", NewHandler(bus, zap.NewNop()).HandleRunStream)

	ts := httptest.NewServer(router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/runs/run-1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The handler subscribes after the upgrade returns; give it a moment.
	require.Eventually(t, func() bool {
		err := bus.Publish(context.Background(), "run.events", domain.Event{
			ID: "probe", Type: domain.EventTypeRunSubmitted, RunID: "run-1",
		})
		if err != nil {
			return false
		}
		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, _, err = conn.ReadMessage()
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	// An event for a different run is filtered; the next matching one is
	// delivered in its place.
	require.NoError(t, bus.Publish(context.Background(), "run.events", domain.Event{
		ID: "other", Type: domain.EventTypeRunCompleted, RunID: "run-2",
	}))
	require.NoError(t, bus.Publish(context.Background(), "cell.events", domain.Event{
		ID: "cell-1", Type: domain.EventTypeCellCompleted, RunID: "run-1", Matrix: "C",
	}))

	// Earlier probe events may still be buffered; read until the cell event
	// arrives and assert the filtered one never does.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var event domain.Event
		require.NoError(t, json.Unmarshal(data, &event))
		require.NotEqual(t, "other", event.ID, "event for another run leaked through")
		if event.ID == "probe" {
			continue
		}

		assert.Equal(t, "cell-1", event.ID)
		assert.Equal(t, domain.EventTypeCellCompleted, event.Type)
		assert.Equal(t, "C", event.Matrix)
		return
	}
}
