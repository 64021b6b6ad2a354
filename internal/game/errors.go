// internal/game/errors.go
package game

import "fmt"

// ErrorKind classifies a rejected request.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindConflict      ErrorKind = "conflict"
	KindNotFound      ErrorKind = "not_found"
)

// Error is returned by every room operation that rejects a request. A rejected
// request never mutates room state.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on Code so that errors carrying a custom message still compare equal
// to the sentinel they were derived from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// withMessage returns a copy of e with a more specific message.
func (e *Error) withMessage(format string, args ...interface{}) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidWordLength = &Error{KindValidation, "invalid_length", "guess must be 5 letters"}
	ErrNotInWordList     = &Error{KindValidation, "not_in_word_list", "not in word list"}
	ErrHardcoreViolation = &Error{KindValidation, "hardcore_violation", "guess must use revealed hints"}
	ErrOpenerReused      = &Error{KindValidation, "opener_reused", "opener already used this game"}
	ErrInvalidSettings   = &Error{KindValidation, "invalid_settings", "invalid settings"}
	ErrInvalidName       = &Error{KindValidation, "invalid_name", "name must be 1-20 characters"}
	ErrInvalidToken      = &Error{KindValidation, "invalid_token", "a player token is required"}
	ErrInvalidLetter     = &Error{KindValidation, "invalid_letter", "letter must be A-Z"}
	ErrInvalidTarget     = &Error{KindValidation, "invalid_target", "invalid target"}
	ErrUnknownItem       = &Error{KindValidation, "unknown_item", "unknown item"}
	ErrInvalidMessage    = &Error{KindValidation, "invalid_message", "message must be 1-200 characters"}

	ErrNotHost     = &Error{KindAuthorization, "not_host", "only the host can do that"}
	ErrWrongState  = &Error{KindAuthorization, "wrong_state", "not allowed right now"}
	ErrNotOptedIn  = &Error{KindAuthorization, "not_opted_in", "choose play again first"}
	ErrCannotKick  = &Error{KindAuthorization, "cannot_kick", "cannot kick that player"}
	ErrEliminated  = &Error{KindAuthorization, "eliminated", "eliminated players are spectators"}
	ErrNotReady    = &Error{KindConflict, "players_not_ready", "not all players are ready"}
	ErrTooFew      = &Error{KindConflict, "not_enough_players", "not enough players"}
	ErrRoomFull    = &Error{KindConflict, "room_full", "room is full"}
	ErrNameTaken   = &Error{KindConflict, "name_taken", "name already taken"}
	ErrRoomClosed  = &Error{KindConflict, "room_closed", "room is closed"}
	ErrInProgress  = &Error{KindConflict, "game_in_progress", "game in progress"}
	ErrSolved      = &Error{KindConflict, "already_solved", "already solved"}
	ErrOutOfGuess  = &Error{KindConflict, "no_guesses_left", "no guesses left"}
	ErrTimeUp      = &Error{KindConflict, "time_up", "time is up"}
	ErrFrozen      = &Error{KindConflict, "frozen", "you are frozen"}
	ErrItemNotHeld = &Error{KindConflict, "item_not_held", "item not in inventory"}
	ErrItemLimit   = &Error{KindConflict, "item_limit", "already used an item this round"}
	ErrTargetDone  = &Error{KindConflict, "target_finished", "target already finished"}
	ErrNoReveal    = &Error{KindConflict, "nothing_to_reveal", "nothing left to reveal"}

	ErrRoomNotFound   = &Error{KindNotFound, "room_not_found", "room not found"}
	ErrPlayerNotFound = &Error{KindNotFound, "player_not_found", "not in this room"}
	ErrTargetNotFound = &Error{KindNotFound, "target_not_found", "target player not found"}
)
