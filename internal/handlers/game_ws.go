// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/kimlj/Multiwordle-sub000/internal/auth"
	"github.com/kimlj/Multiwordle-sub000/internal/middleware"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "multiwordle"

// maxMessageBytes bounds a single inbound frame.
const maxMessageBytes = 16 << 10

// GameWSHandler upgrades the connection, registers it with the hub and runs the
// read loop. On exit the player's disconnect is handed to the session manager.
func GameWSHandler(gs *GameServer) http.HandlerFunc {
	logger := gs.Logger
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: gs.OriginPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the multiwordle subprotocol")
			return
		}

		// The cookie is optional; intents may carry the durable token instead.
		var token string
		if cookie := extractCookieToken(r.Header.Get("Cookie"), auth.CookieName); cookie != "" && gs.Issuer != nil {
			token, err = gs.Issuer.AuthenticateJWT(cookie)
			if err != nil {
				logger.Warnf("rejecting websocket with bad auth cookie from %s: %v", r.RemoteAddr, err)
				c.Close(InvalidAuthTokenError, "invalid auth token")
				return
			}
		}

		client := newClient(uuid.NewString(), token, gs.newLimiter())
		gs.Hub.register(client)
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
		c.SetReadLimit(maxMessageBytes)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go gs.Hub.writePump(ctx, c, client)

		readErr := gs.readIntents(ctx, c, client)

		gs.Hub.unregister(client)
		client.close(websocket.StatusNormalClosure, "")
		gs.Sessions.Disconnect(client.ID)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// readIntents reads and handles intents until the socket closes. Intents from one
// connection are handled strictly in order. The returned error is nil on a normal close.
func (gs *GameServer) readIntents(ctx context.Context, c *websocket.Conn, client *Client) error {
	log := gs.Logger.WithField("conn", client.ID)
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			log.Warnf("ignoring non-text message type %d", msgType)
			continue
		}

		var in Intent
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			gs.Hub.reply(client, Ack{Type: "ack", Error: "invalid JSON intent", Code: codeBadRequest})
			continue
		}
		if !client.limiter.Allow() {
			gs.Hub.reply(client, Ack{Type: "ack", ID: in.ID, Error: "slow down", Code: codeRateLimited})
			continue
		}
		log.Tracef("intent %s", in.Type)
		gs.Hub.reply(client, gs.handle(client, in))
	}
}
