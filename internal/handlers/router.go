// internal/handlers/router.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/kimlj/Multiwordle-sub000/internal/game"
	"github.com/sirupsen/logrus"
)

const eventSessionReplaced game.EventType = "session-replaced"

// Intent is one inbound message. ID correlates the acknowledgement.
type Intent struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Ack answers an Intent.
type Ack struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// ack codes that do not come from the game package
const (
	codeBadRequest    = "bad_request"
	codeUnknownIntent = "unknown_intent"
	codeRateLimited   = "rate_limited"
	codeInternal      = "internal"
)

// requestError is a transport-level rejection with its own ack code.
type requestError struct {
	code string
	msg  string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &requestError{code: codeBadRequest, msg: fmt.Sprintf(format, args...)}
}

type roomPayload struct {
	Code         string                 `json:"code"`
	Name         string                 `json:"name"`
	DurableToken string                 `json:"durableToken"`
	Settings     map[string]interface{} `json:"settings"`
}

type startPayload struct {
	CustomWord  string   `json:"customWord"`
	CustomWords []string `json:"customWords"`
}

type itemPayload struct {
	ItemID   game.ItemID `json:"itemId"`
	TargetID string      `json:"targetId"`
}

type joinedPayload struct {
	Code     string `json:"code"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Verdict  string `json:"verdict,omitempty"`
}

// handle runs one intent for c and returns its ack. A panic is recovered and reported
// as an internal error so it never reaches other connections.
func (gs *GameServer) handle(c *Client, in Intent) (ack Ack) {
	log := gs.Logger.WithFields(logrus.Fields{"conn": c.ID, "intent": in.Type})
	ack = Ack{Type: "ack", ID: in.ID}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic handling intent: %v\n%s", r, debug.Stack())
			ack.Success, ack.Error, ack.Code, ack.Payload = false, "internal error", codeInternal, nil
		}
	}()

	payload, err := gs.dispatch(c, in)
	if err != nil {
		ack.Error, ack.Code = describe(err)
		if ack.Code == codeInternal {
			log.Errorf("intent failed: %v", err)
		} else {
			log.Debugf("intent rejected: %v", err)
		}
		return ack
	}
	ack.Success = true
	ack.Payload = payload
	return ack
}

// describe turns err into the ack's message and code.
func describe(err error) (string, string) {
	var gerr *game.Error
	if errors.As(err, &gerr) {
		return gerr.Message, gerr.Code
	}
	var rerr *requestError
	if errors.As(err, &rerr) {
		return rerr.msg, rerr.code
	}
	return "internal error", codeInternal
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequest("malformed payload: %v", err)
	}
	return nil
}

// tokenFor picks the durable token: the one in the payload, else the cookie's.
func tokenFor(c *Client, fromPayload string) string {
	if fromPayload != "" {
		return fromPayload
	}
	return c.Token
}

func (gs *GameServer) dispatch(c *Client, in Intent) (interface{}, error) {
	switch in.Type {
	case "ping":
		return map[string]int64{"serverTime": gs.Clock.Now().UnixMilli()}, nil

	case "create-room":
		var p roomPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		token := tokenFor(c, p.DurableToken)
		if token == "" {
			return nil, game.ErrInvalidToken
		}
		room, player, err := gs.Sessions.Create(c.ID, p.Name, token, p.Settings)
		if err != nil {
			return nil, err
		}
		return joinedPayload{Code: room.Code, PlayerID: player.ID, Name: player.Name}, nil

	case "join-room", "rejoin-room":
		var p roomPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		join := gs.Sessions.Join
		if in.Type == "rejoin-room" {
			join = gs.Sessions.Rejoin
		}
		room, adm, err := join(c.ID, p.Code, p.Name, tokenFor(c, p.DurableToken))
		if err != nil {
			return nil, err
		}
		return joinedPayload{Code: room.Code, PlayerID: adm.Player.ID, Name: adm.Player.Name, Verdict: adm.Verdict.String()}, nil

	case "leave-room":
		return nil, gs.Sessions.Leave(c.ID)

	case "kick-player":
		var p itemPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return nil, gs.Sessions.Kick(c.ID, p.TargetID)
	}

	room, err := gs.Sessions.Room(c.ID)
	if err != nil {
		if _, known := roomIntents[in.Type]; !known {
			return nil, &requestError{code: codeUnknownIntent, msg: fmt.Sprintf("unknown intent: %s", in.Type)}
		}
		return nil, err
	}
	handler, ok := roomIntents[in.Type]
	if !ok {
		return nil, &requestError{code: codeUnknownIntent, msg: fmt.Sprintf("unknown intent: %s", in.Type)}
	}
	return handler(room, c.ID, in.Payload)
}

type roomHandler func(room *game.Room, connID string, raw json.RawMessage) (interface{}, error)

// roomIntents are the intents that act on the caller's current room.
var roomIntents = map[string]roomHandler{
	"update-name": func(room *game.Room, connID string, raw json.RawMessage) (interface{}, error) {
		var p roomPayload
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return nil, room.UpdateName(connID, p.Name)
	},
	"toggle-ready": func(room *game.Room, connID string, _ json.RawMessage) (interface{}, error) {
		ready, err := room.ToggleReady(connID)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"ready": ready}, nil
	},
	"update-settings": func(room *game.Room, connID string, raw json.RawMessage) (interface{}, error) {
		var p roomPayload
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		if p.Settings == nil {
			return nil, badRequest("settings are required")
		}
		return room.UpdateSettings(connID, p.Settings)
	},
	"start-game": func(room *game.Room, connID string, raw json.RawMessage) (interface{}, error) {
		var p startPayload
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return nil, room.StartGame(connID, p.CustomWord, p.CustomWords)
	},
	"submit-guess": func(room *game.Room, connID string, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Word string `json:"word"`
		}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return room.SubmitGuess(connID, p.Word)
	},
	"use-item": func(room *game.Room, connID string, raw json.RawMessage) (interface{}, error) {
		var p itemPayload
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return room.UseItem(connID, p.ItemID, p.TargetID)
	},
	"letter-snipe": func(room *game.Room, connID string, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Letter string `json:"letter"`
		}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return room.LetterSnipe(connID, p.Letter)
	},
	"next-round": func(room *game.Room, connID string, raw json.RawMessage) (interface{}, error) {
		var p startPayload
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return nil, room.NextRound(connID, p.CustomWord)
	},
	"force-end-round": func(room *game.Room, connID string, _ json.RawMessage) (interface{}, error) {
		return nil, room.ForceEndRound(connID)
	},
	"end-game": func(room *game.Room, connID string, _ json.RawMessage) (interface{}, error) {
		return nil, room.EndGame(connID)
	},
	"play-again": func(room *game.Room, connID string, _ json.RawMessage) (interface{}, error) {
		return nil, room.PlayAgain(connID)
	},
	"restart-lobby": func(room *game.Room, connID string, _ json.RawMessage) (interface{}, error) {
		return nil, room.RestartLobby(connID)
	},
	"chat": func(room *game.Room, connID string, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Message string `json:"message"`
		}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return nil, room.Chat(connID, p.Message)
	},
	"sync": func(room *game.Room, connID string, _ json.RawMessage) (interface{}, error) {
		return nil, room.Sync(connID)
	},
}
