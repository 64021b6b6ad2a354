// internal/handlers/api_server.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/kimlj/Multiwordle-sub000/internal/auth"
	"github.com/kimlj/Multiwordle-sub000/internal/database"
	"github.com/kimlj/Multiwordle-sub000/internal/game"
)

// Routes registers every HTTP and websocket endpoint on a new mux.
func Routes(gs *GameServer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", HealthHandler(gs))
	mux.HandleFunc("POST /session", SessionHandler(gs))
	mux.HandleFunc("GET /rooms", ListRoomsHandler(gs))
	mux.HandleFunc("GET /rooms/{code}", RoomHandler(gs))
	mux.HandleFunc("GET /items", ItemsHandler())
	mux.HandleFunc("/ws", GameWSHandler(gs))

	if gs.Store != nil {
		mux.HandleFunc("GET /analytics/games", ListGamesHandler(gs))
		mux.HandleFunc("GET /analytics/games/{id}", GetGameHandler(gs))
		mux.HandleFunc("GET /analytics/leaderboard", LeaderboardHandler(gs))
	}
	return mux
}

// HealthHandler reports liveness with room and connection counts.
func HealthHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"rooms":       gs.Registry.Len(),
			"connections": gs.Hub.Len(),
			"pending":     gs.Sessions.Pending(),
		})
	}
}

// SessionHandler returns the caller's durable player token, issuing a new one in the
// auth_token cookie when the request carries no valid cookie.
func SessionHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gs.Issuer == nil {
			writeError(w, http.StatusNotFound, "disabled", "sessions are disabled")
			return
		}
		if cookie := extractCookieToken(r.Header.Get("Cookie"), auth.CookieName); cookie != "" {
			if token, err := gs.Issuer.AuthenticateJWT(cookie); err == nil {
				writeJSON(w, http.StatusOK, map[string]string{"token": token})
				return
			}
		}

		token, signed, err := gs.Issuer.NewPlayerToken()
		if err != nil {
			gs.Logger.Errorf("failed to issue player token: %v", err)
			writeError(w, http.StatusInternalServerError, codeInternal, "could not issue token")
			return
		}
		cookie := &http.Cookie{
			Name:     auth.CookieName,
			Value:    signed,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		}
		if exp := gs.Issuer.Expire(); exp > 0 {
			cookie.MaxAge = int(exp.Seconds())
		}
		http.SetCookie(w, cookie)
		writeJSON(w, http.StatusCreated, map[string]string{"token": token})
	}
}

// ListRoomsHandler lists open rooms.
func ListRoomsHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, gs.Registry.List())
	}
}

// RoomHandler probes a room code for the join screen.
func RoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := gs.Registry.Get(r.PathValue("code"))
		if errors.Is(err, game.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, game.ErrRoomNotFound.Code, game.ErrRoomNotFound.Message)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternal, "lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, room.Info())
	}
}

// ItemsHandler serves the power-up catalog for client tooltips.
func ItemsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, game.Catalog())
	}
}

// ListGamesHandler lists recently finished games.
func ListGamesHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games, err := gs.Store.ListGames(r.Context(), queryLimit(r, 20, 100))
		if err != nil {
			gs.Logger.Errorf("list games: %v", err)
			writeError(w, http.StatusInternalServerError, codeInternal, "query failed")
			return
		}
		writeJSON(w, http.StatusOK, games)
	}
}

// GetGameHandler returns one finished game's full summary.
func GetGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "invalid game id")
			return
		}
		sum, err := gs.Store.GetGame(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game_not_found", "game not found")
			return
		}
		if err != nil {
			gs.Logger.Errorf("get game %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, codeInternal, "query failed")
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// LeaderboardHandler ranks returning players.
func LeaderboardHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := gs.Store.Leaderboard(r.Context(), queryLimit(r, 20, 100))
		if err != nil {
			gs.Logger.Errorf("leaderboard: %v", err)
			writeError(w, http.StatusInternalServerError, codeInternal, "query failed")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}
