// internal/words/words.go
package words

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"
)

// WordLength is the number of letters in every target and guess.
const WordLength = 5

//go:embed words.txt
var defaultList string

// List is an in-memory word list that answers dictionary checks and random picks.
// It is safe for concurrent use.
type List struct {
	words []string
	valid map[string]struct{}

	mu  sync.Mutex
	rng *rand.Rand
}

// Default returns a List backed by the embedded word list.
func Default() *List {
	l, err := Parse(strings.NewReader(defaultList))
	if err != nil {
		panic(fmt.Sprintf("embedded word list is invalid: %v", err))
	}
	return l
}

// LoadFile reads a newline separated word list from path. Blank lines and lines
// starting with '#' are skipped.
func LoadFile(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse builds a List from r. Words of the wrong length or with non-letters are rejected.
func Parse(r io.Reader) (*List, error) {
	l := &List{
		valid: make(map[string]struct{}),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		w := Normalize(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		if !wellFormed(w) {
			return nil, fmt.Errorf("line %d: %q is not a %d letter word", line, w, WordLength)
		}
		if _, dup := l.valid[w]; dup {
			continue
		}
		l.valid[w] = struct{}{}
		l.words = append(l.words, w)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}
	if len(l.words) == 0 {
		return nil, fmt.Errorf("word list is empty")
	}
	return l, nil
}

// Seed makes RandomWord deterministic.
func (l *List) Seed(seed int64) {
	l.mu.Lock()
	l.rng = rand.New(rand.NewSource(seed))
	l.mu.Unlock()
}

// IsValidWord reports whether word is in the list. Case is ignored.
func (l *List) IsValidWord(word string) bool {
	_, ok := l.valid[Normalize(word)]
	return ok
}

// RandomWord returns a uniformly random word from the list.
func (l *List) RandomWord() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.words[l.rng.Intn(len(l.words))]
}

// Len returns the number of distinct words.
func (l *List) Len() int { return len(l.words) }

// Normalize upper-cases and trims a word.
func Normalize(word string) string {
	return strings.ToUpper(strings.TrimSpace(word))
}

// WellFormed reports whether word has the right length and only A-Z letters, after normalizing.
func WellFormed(word string) bool {
	return wellFormed(Normalize(word))
}

func wellFormed(w string) bool {
	if len(w) != WordLength {
		return false
	}
	for i := 0; i < len(w); i++ {
		if w[i] < 'A' || w[i] > 'Z' {
			return false
		}
	}
	return true
}
