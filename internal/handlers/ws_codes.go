// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError websocket.StatusCode = 3001 // The auth_token cookie failed verification.
	SessionReplacedError  websocket.StatusCode = 3002 // The same player continued on a newer connection.
	ServerShutdownError   websocket.StatusCode = 3003 // The server is shutting down.
)
