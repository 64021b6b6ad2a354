// internal/handlers/handlers_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/kimlj/Multiwordle-sub000/internal/auth"
	"github.com/kimlj/Multiwordle-sub000/internal/game"
	"github.com/kimlj/Multiwordle-sub000/internal/session"
	"github.com/kimlj/Multiwordle-sub000/internal/words"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts Options) *GameServer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	clock := clockwork.NewFakeClock()
	hub := NewHub(logger)
	reg := game.NewRegistry(game.Deps{Oracle: words.Default(), Broadcaster: hub, Clock: clock, Logger: logger})
	mgr := session.NewManager(reg, hub, session.Options{Clock: clock, Logger: logger})
	reg.SetHoldCheck(mgr.HasPending)

	iss, err := auth.NewIssuer(time.Hour, nil)
	require.NoError(t, err)
	opts.Issuer = iss
	opts.Clock = clock
	gs := NewGameServer(logger, reg, mgr, hub, opts)
	t.Cleanup(gs.Shutdown)
	return gs
}

func startHTTP(t *testing.T, gs *GameServer) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(Routes(gs))
	t.Cleanup(srv.Close)
	return srv
}

type testAck struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, srv *httptest.Server, header http.Header, protocols ...string) *websocket.Conn {
	t.Helper()
	if protocols == nil {
		protocols = []string{Subprotocol}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: protocols, HTTPHeader: header})
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func send(t *testing.T, c *websocket.Conn, id, typ string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(Intent{Type: typ, ID: id, Payload: raw})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

// next reads frames until match accepts one.
func next(t *testing.T, c *websocket.Conn, match func(typ string, data []byte) bool) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err)
		var head struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(data, &head))
		if match(head.Type, data) {
			return data
		}
	}
}

func awaitAck(t *testing.T, c *websocket.Conn, id string) testAck {
	t.Helper()
	var ack testAck
	data := next(t, c, func(typ string, data []byte) bool {
		if typ != "ack" {
			return false
		}
		require.NoError(t, json.Unmarshal(data, &ack))
		return ack.ID == id
	})
	require.NoError(t, json.Unmarshal(data, &ack))
	return ack
}

func awaitEvent(t *testing.T, c *websocket.Conn, typ game.EventType) {
	t.Helper()
	next(t, c, func(got string, _ []byte) bool { return got == string(typ) })
}

func TestHealthAndRoomProbe(t *testing.T) {
	gs := newTestServer(t, Options{})
	srv := startHTTP(t, gs)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/rooms/ZZZZZZ")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	room, _, err := gs.Sessions.Create("c1", "Alice", "tok-a", nil)
	require.NoError(t, err)
	resp, err = http.Get(srv.URL + "/rooms/" + strings.ToLower(room.Code))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info game.RoomInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, room.Code, info.Code)
	assert.Equal(t, 1, info.Players)

	resp, err = http.Get(srv.URL + "/analytics/games")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "analytics routes need a store")
}

func TestItemsListsCatalog(t *testing.T) {
	gs := newTestServer(t, Options{})
	srv := startHTTP(t, gs)

	resp, err := http.Get(srv.URL + "/items")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []game.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	catalog := game.Catalog()
	require.Len(t, items, len(catalog))
	for i, it := range catalog {
		assert.Equal(t, it.ID, items[i].ID)
		assert.Equal(t, it.Rarity, items[i].Rarity)
		assert.NotEmpty(t, items[i].Description)
	}
}

func TestSessionIssuesStableToken(t *testing.T) {
	gs := newTestServer(t, Options{})
	h := SessionHandler(gs)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var first map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&first))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodPost, "/session", nil)
	req.Header.Set("Cookie", auth.CookieName+"="+cookies[0].Value)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var second map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&second))
	assert.Equal(t, first["token"], second["token"])
}

func TestWebsocketRejectsBadHandshake(t *testing.T) {
	gs := newTestServer(t, Options{})
	srv := startHTTP(t, gs)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c := dial(t, srv, nil, "other")
	_, _, err := c.Read(ctx)
	assert.Equal(t, BadSubprotocolError, websocket.CloseStatus(err))

	c = dial(t, srv, http.Header{"Cookie": []string{auth.CookieName + "=garbage"}})
	_, _, err = c.Read(ctx)
	assert.Equal(t, InvalidAuthTokenError, websocket.CloseStatus(err))
}

func TestWebsocketRoomFlow(t *testing.T) {
	gs := newTestServer(t, Options{})
	srv := startHTTP(t, gs)

	alice := dial(t, srv, nil)
	send(t, alice, "1", "create-room", map[string]interface{}{
		"name": "Alice", "durableToken": "tok-a", "settings": map[string]interface{}{"rounds": 2},
	})
	ack := awaitAck(t, alice, "1")
	require.True(t, ack.Success, ack.Error)
	var created joinedPayload
	require.NoError(t, json.Unmarshal(ack.Payload, &created))
	assert.Len(t, created.Code, 6)

	bob := dial(t, srv, nil)
	send(t, bob, "1", "join-room", map[string]interface{}{"code": created.Code, "name": "Bob", "durableToken": "tok-b"})
	ack = awaitAck(t, bob, "1")
	require.True(t, ack.Success, ack.Error)
	var joined joinedPayload
	require.NoError(t, json.Unmarshal(ack.Payload, &joined))
	assert.Equal(t, "fresh_join", joined.Verdict)
	awaitEvent(t, alice, game.EventPlayerJoined)

	send(t, bob, "2", "start-game", nil)
	ack = awaitAck(t, bob, "2")
	assert.False(t, ack.Success)
	assert.Equal(t, game.ErrNotHost.Code, ack.Code)

	send(t, bob, "3", "toggle-ready", nil)
	ack = awaitAck(t, bob, "3")
	require.True(t, ack.Success, ack.Error)
	assert.JSONEq(t, `{"ready":true}`, string(ack.Payload))

	send(t, alice, "2", "chat", map[string]string{"message": "  hi  "})
	require.True(t, awaitAck(t, alice, "2").Success)
	awaitEvent(t, bob, game.EventChat)

	send(t, alice, "3", "teleport", nil)
	ack = awaitAck(t, alice, "3")
	assert.Equal(t, codeUnknownIntent, ack.Code)

	send(t, alice, "4", "start-game", map[string]string{"customWord": "crane"})
	require.True(t, awaitAck(t, alice, "4").Success)
	awaitEvent(t, bob, game.EventCountdown)

	send(t, bob, "4", "leave-room", nil)
	require.True(t, awaitAck(t, bob, "4").Success)
	send(t, bob, "5", "sync", nil)
	assert.Equal(t, game.ErrPlayerNotFound.Code, awaitAck(t, bob, "5").Code)
}

func TestWebsocketMalformedAndRateLimited(t *testing.T) {
	gs := newTestServer(t, Options{RatePerSec: 0.001, RateBurst: 1})
	srv := startHTTP(t, gs)
	c := dial(t, srv, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{not json")))
	ack := awaitAck(t, c, "")
	assert.Equal(t, codeBadRequest, ack.Code)

	send(t, c, "1", "ping", nil)
	ack = awaitAck(t, c, "1")
	require.True(t, ack.Success)
	assert.Contains(t, string(ack.Payload), "serverTime")

	send(t, c, "2", "ping", nil)
	assert.Equal(t, codeRateLimited, awaitAck(t, c, "2").Code)
}

func TestDuplicateConnectionIsReplaced(t *testing.T) {
	gs := newTestServer(t, Options{})
	srv := startHTTP(t, gs)

	first := dial(t, srv, nil)
	send(t, first, "1", "create-room", map[string]string{"name": "Alice", "durableToken": "tok-a"})
	ack := awaitAck(t, first, "1")
	require.True(t, ack.Success, ack.Error)
	var created joinedPayload
	require.NoError(t, json.Unmarshal(ack.Payload, &created))

	second := dial(t, srv, nil)
	send(t, second, "1", "rejoin-room", map[string]string{"code": created.Code, "name": "Alice", "durableToken": "tok-a"})
	ack = awaitAck(t, second, "1")
	require.True(t, ack.Success, ack.Error)
	var joined joinedPayload
	require.NoError(t, json.Unmarshal(ack.Payload, &joined))
	assert.Equal(t, "transplant", joined.Verdict)
	assert.Equal(t, created.PlayerID, joined.PlayerID)

	awaitEvent(t, first, eventSessionReplaced)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var err error
	for err == nil {
		_, _, err = first.Read(ctx)
	}
	assert.Equal(t, SessionReplacedError, websocket.CloseStatus(err))

	room, err := gs.Registry.Get(created.Code)
	require.NoError(t, err)
	assert.False(t, room.Empty(), "closing the stale socket leaves the player in place")
}

func TestHandleRecoversFromPanics(t *testing.T) {
	gs := newTestServer(t, Options{})
	c := newClient("c1", "", gs.newLimiter())
	gs.Hub.register(c)

	roomIntents["explode"] = func(*game.Room, string, json.RawMessage) (interface{}, error) { panic("boom") }
	defer delete(roomIntents, "explode")

	_, _, err := gs.Sessions.Create(c.ID, "Alice", "tok-a", nil)
	require.NoError(t, err)
	ack := gs.handle(c, Intent{Type: "explode", ID: "9"})
	assert.False(t, ack.Success)
	assert.Equal(t, codeInternal, ack.Code)
	assert.Equal(t, "9", ack.ID)
}

func TestHubDropsSlowClient(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hub := NewHub(logger)
	c := newClient("c1", "", nil)
	hub.register(c)
	for i := 0; i < sendBuffer+1; i++ {
		hub.Send("c1", game.Event{Type: game.EventChat})
	}
	select {
	case <-c.done:
	default:
		t.Fatal("slow client was not closed")
	}
	assert.Equal(t, websocket.StatusPolicyViolation, c.closeCode)
}
