package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/internal/core/dice"
	"github.com/zeusync/tabletop/internal/core/events"
	"github.com/zeusync/tabletop/internal/core/events/bus"
	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/lock"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/narration"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/resolver"
	"github.com/zeusync/tabletop/internal/core/scenario"
	"github.com/zeusync/tabletop/internal/core/state"
	"github.com/zeusync/tabletop/internal/core/storage/memory"
	"github.com/zeusync/tabletop/internal/core/turn"
)

// inbound is the union of everything the server writes to a socket.
type inbound struct {
	Kind    string           `json:"kind"`
	ID      string           `json:"id"`
	Outcome *command.Outcome `json:"outcome"`
	Error   string           `json:"error"`
	Payload json.RawMessage  `json:"payload"`
}

type testServer struct {
	http *httptest.Server
	ws   *WebSocketServer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	mem := memory.New()
	store := state.NewStore(mem, mem, models.DefaultCatalog(), log.Nop())
	sc, err := scenario.Builtin("goblin_cave")
	require.NoError(t, err)
	require.NoError(t, sc.Seed(ctx, store, mem, "s1"))

	locks := lock.NewManager(lock.NewMemoryBackend(0), lock.DefaultConfig(), log.Nop())
	res := resolver.New(dice.NewScripted(), models.DefaultCatalog(), resolver.Options{})
	seq := turn.New(res, turn.DefaultConfig(), log.Nop())
	broadcast := events.NewBusBroadcaster(bus.New(), log.Nop())
	dispatcher := command.NewDispatcher(nil, locks, store, seq, mem, broadcast, narration.Noop{}, nil, log.Nop())

	ws := NewWebSocketServer(broadcast, store, dispatcher, Config{}, log.Nop())
	srv := httptest.NewServer(NewHTTPServer(ws, Config{}, log.Nop()).Handler())
	t.Cleanup(func() {
		ws.Close()
		srv.Close()
	})
	return &testServer{http: srv, ws: ws}
}

func (s *testServer) dial(t *testing.T, sessionID string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws?session=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) inbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg inbound
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func moveTo(id string, q, r int) clientMessage {
	dest := hex.New(q, r)
	return clientMessage{Type: msgCommand, ID: id, Command: command.Command{Name: "move", ActorID: "aria", Dest: &dest}}
}

func TestWebSocketJoin(t *testing.T) {
	srv := newTestServer(t)

	t.Run("Initial State", func(t *testing.T) {
		conn := srv.dial(t, "s1")
		msg := read(t, conn)
		require.Equal(t, string(events.KindState), msg.Kind)

		var view events.StateView
		require.NoError(t, json.Unmarshal(msg.Payload, &view))
		require.Equal(t, models.PhaseExploration, view.Phase)
		require.Len(t, view.Party, 2)
		require.Equal(t, "Small Shape", view.Enemies[0].Name, "unidentified enemies keep their cover name")
	})

	t.Run("Unknown Session", func(t *testing.T) {
		conn := srv.dial(t, "nowhere")
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := conn.ReadMessage()
		var closeErr *websocket.CloseError
		require.True(t, errors.As(err, &closeErr), "got %v", err)
		require.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		require.Eventually(t, func() bool { return srv.ws.Clients("nowhere") == 0 }, time.Second, 5*time.Millisecond)
	})

	t.Run("Missing Session", func(t *testing.T) {
		u := "ws" + strings.TrimPrefix(srv.http.URL, "http") + "/ws"
		_, resp, err := websocket.DefaultDialer.Dial(u, nil)
		require.Error(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestWebSocketCommands(t *testing.T) {
	srv := newTestServer(t)
	actor := srv.dial(t, "s1")
	watcher := srv.dial(t, "s1")
	read(t, actor)
	read(t, watcher)
	require.Equal(t, 2, srv.ws.Clients("s1"))

	t.Run("Move Fans Out", func(t *testing.T) {
		require.NoError(t, actor.WriteJSON(moveTo("m1", -1, 1)))

		require.Equal(t, string(events.KindPath), read(t, actor).Kind)
		require.Equal(t, string(events.KindState), read(t, actor).Kind)
		rep := read(t, actor)
		require.Equal(t, kindOutcome, rep.Kind)
		require.Equal(t, "m1", rep.ID)
		require.True(t, rep.Outcome.OK, rep.Outcome.Message)

		require.Equal(t, string(events.KindPath), read(t, watcher).Kind)
		update := read(t, watcher)
		require.Equal(t, string(events.KindState), update.Kind)
		var view events.StateView
		require.NoError(t, json.Unmarshal(update.Payload, &view))
		require.Equal(t, hex.New(-1, 1), *view.Party[0].Position)
	})

	t.Run("Rejection", func(t *testing.T) {
		msg := clientMessage{Type: msgCommand, ID: "a1", Command: command.Command{Name: "attack", ActorID: "aria"}}
		require.NoError(t, actor.WriteJSON(msg))
		rep := read(t, actor)
		require.Equal(t, kindOutcome, rep.Kind)
		require.False(t, rep.Outcome.OK)
		require.Contains(t, rep.Outcome.Message, "target_id")
	})

	t.Run("Malformed", func(t *testing.T) {
		require.NoError(t, actor.WriteMessage(websocket.TextMessage, []byte("{nope")))
		rep := read(t, actor)
		require.Equal(t, kindError, rep.Kind)
		require.Equal(t, ErrInvalidMessage.Error(), rep.Error)
	})

	t.Run("Unknown Type", func(t *testing.T) {
		require.NoError(t, actor.WriteJSON(clientMessage{Type: "chat", ID: "c1"}))
		rep := read(t, actor)
		require.Equal(t, kindError, rep.Kind)
		require.Equal(t, "c1", rep.ID)
	})

	t.Run("Leaving Empties The Room", func(t *testing.T) {
		require.NoError(t, actor.Close())
		require.NoError(t, watcher.Close())
		require.Eventually(t, func() bool { return srv.ws.Clients("s1") == 0 }, 2*time.Second, 5*time.Millisecond)
	})
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.http.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHTTPServerLifecycle(t *testing.T) {
	ws := NewWebSocketServer(nil, nil, nil, Config{}, log.Nop())
	s := NewHTTPServer(ws, Config{Addr: "127.0.0.1:0"}, log.Nop())

	require.ErrorIs(t, s.Stop(context.Background()), ErrServerNotRunning)
	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), ErrServerRunning)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	require.Empty(t, s.Addr())
}
