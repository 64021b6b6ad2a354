// internal/game/rules.go
package game

import (
	"github.com/kimlj/Multiwordle-sub000/internal/words"
)

// Mode selects how a game is won.
type Mode string

const (
	ModeClassic      Mode = "classic"
	ModeBattleRoyale Mode = "battleRoyale"
)

const (
	minRounds       = 1
	maxRounds       = 20
	minRoundTimeSec = 30
	maxRoundTimeSec = 600
	minGuessTimeSec = 10
	maxGuessTimeSec = 120
)

// Settings are the host-configurable options of a room.
type Settings struct {
	Rounds           int      `json:"rounds"`           // number of rounds in classic mode
	RoundTimeSec     int      `json:"roundTimeSec"`     // length of the round clock
	GuessTimeSec     int      `json:"guessTimeSec"`     // room-wide idle limit between guesses; 0 disables it
	Mode             Mode     `json:"mode"`             // classic or battleRoyale
	MirrorMatch      bool     `json:"mirrorMatch"`      // everyone opens with the same random word
	HardcoreMode     bool     `json:"hardcoreMode"`     // revealed hints must be used in later guesses
	FreshOpenersOnly bool     `json:"freshOpenersOnly"` // a player may not repeat an opener within a game
	PowerUpsEnabled  bool     `json:"powerUpsEnabled"`  // drops, challenges and items
	CustomWords      []string `json:"customWords,omitempty"`
}

// DefaultSettings returns the settings a new room starts with.
func DefaultSettings() Settings {
	return Settings{
		Rounds:       3,
		RoundTimeSec: 180,
		Mode:         ModeClassic,
	}
}

// Update applies the keys present in partial. Keys that are absent keep their old value.
// On error nothing is changed.
func (s *Settings) Update(partial map[string]interface{}, validWord func(string) bool) error {
	next := *s
	next.CustomWords = append([]string(nil), s.CustomWords...)

	assignBool := func(field *bool, key string) error {
		if val, exists := partial[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return ErrInvalidSettings.withMessage("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}

	assignInt := func(field *int, key string) error {
		if val, exists := partial[key]; exists && val != nil {
			switch v := val.(type) {
			case float64:
				if v != float64(int(v)) {
					return ErrInvalidSettings.withMessage("%s must be a whole number", key)
				}
				*field = int(v)
			case int:
				*field = v
			default:
				return ErrInvalidSettings.withMessage("invalid type for %s", key)
			}
		}
		return nil
	}

	if err := assignInt(&next.Rounds, "rounds"); err != nil {
		return err
	}
	if err := assignInt(&next.RoundTimeSec, "roundTimeSec"); err != nil {
		return err
	}
	if err := assignInt(&next.GuessTimeSec, "guessTimeSec"); err != nil {
		return err
	}
	if err := assignBool(&next.MirrorMatch, "mirrorMatch"); err != nil {
		return err
	}
	if err := assignBool(&next.HardcoreMode, "hardcoreMode"); err != nil {
		return err
	}
	if err := assignBool(&next.FreshOpenersOnly, "freshOpenersOnly"); err != nil {
		return err
	}
	if err := assignBool(&next.PowerUpsEnabled, "powerUpsEnabled"); err != nil {
		return err
	}
	if val, exists := partial["mode"]; exists && val != nil {
		m, ok := val.(string)
		if !ok {
			return ErrInvalidSettings.withMessage("invalid type for mode")
		}
		next.Mode = Mode(m)
	}
	if val, exists := partial["customWords"]; exists {
		list, err := toStringSlice(val)
		if err != nil {
			return err
		}
		next.CustomWords = list
	}

	if err := next.Validate(validWord); err != nil {
		return err
	}
	*s = next
	return nil
}

// Validate checks bounds and normalizes custom words in place.
func (s *Settings) Validate(validWord func(string) bool) error {
	if s.Rounds < minRounds || s.Rounds > maxRounds {
		return ErrInvalidSettings.withMessage("rounds must be between %d and %d", minRounds, maxRounds)
	}
	if s.RoundTimeSec < minRoundTimeSec || s.RoundTimeSec > maxRoundTimeSec {
		return ErrInvalidSettings.withMessage("roundTimeSec must be between %d and %d", minRoundTimeSec, maxRoundTimeSec)
	}
	if s.GuessTimeSec != 0 && (s.GuessTimeSec < minGuessTimeSec || s.GuessTimeSec > maxGuessTimeSec) {
		return ErrInvalidSettings.withMessage("guessTimeSec must be 0 or between %d and %d", minGuessTimeSec, maxGuessTimeSec)
	}
	if s.Mode != ModeClassic && s.Mode != ModeBattleRoyale {
		return ErrInvalidSettings.withMessage("unknown mode %q", s.Mode)
	}
	return normalizeCustomWords(s.CustomWords, validWord)
}

// asMap flattens settings for analytics export.
func (s Settings) asMap() map[string]interface{} {
	return map[string]interface{}{
		"rounds":           s.Rounds,
		"roundTimeSec":     s.RoundTimeSec,
		"guessTimeSec":     s.GuessTimeSec,
		"mode":             string(s.Mode),
		"mirrorMatch":      s.MirrorMatch,
		"hardcoreMode":     s.HardcoreMode,
		"freshOpenersOnly": s.FreshOpenersOnly,
		"powerUpsEnabled":  s.PowerUpsEnabled,
		"customWords":      len(s.CustomWords),
	}
}

func normalizeCustomWords(list []string, validWord func(string) bool) error {
	for i, w := range list {
		w = words.Normalize(w)
		if w == "" {
			// empty entries fall back to a random word for that round
			list[i] = ""
			continue
		}
		if !words.WellFormed(w) {
			return ErrInvalidSettings.withMessage("custom word %q must be %d letters", w, words.WordLength)
		}
		if validWord != nil && !validWord(w) {
			return ErrInvalidSettings.withMessage("custom word %q is not in the word list", w)
		}
		list[i] = w
	}
	return nil
}

func toStringSlice(val interface{}) ([]string, error) {
	switch v := val.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), v...), nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, ErrInvalidSettings.withMessage("customWords must be strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, ErrInvalidSettings.withMessage("invalid type for customWords: %T", val)
	}
}
