// internal/words/words.go
//
// Noun pool management for the game engine.
//
// Responsibilities:
//   - Load the candidate target nouns from a file or the embedded default list.
//   - Normalize every entry (trimmed, lowercase, deduplicated, order preserved).
//   - Pick targets uniformly at random (crypto/rand) or by index (daily mode).
//
// Initialization behavior (Init):
//   1. If a path is given (NOUNS_FILE), load one noun per line from that file.
//   2. Otherwise fall back to assets/nouns.txt.

package words

import (
	"bufio"
	"crypto/rand"
	"errors"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/rizkyjpr/semantic-game/assets"
)

// ErrEmptyPool is returned when a pool would contain no nouns.
var ErrEmptyPool = errors.New("words: noun pool is empty")

// Pool is an immutable list of candidate target nouns.
type Pool struct {
	nouns []string
	set   map[string]struct{}
}

// NewPool normalizes list into a Pool. Blank lines and '#' comments are dropped,
// duplicates keep their first position.
func NewPool(list []string) (*Pool, error) {
	p := &Pool{set: make(map[string]struct{}, len(list))}
	for _, w := range list {
		w = Normalize(w)
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		if _, dup := p.set[w]; dup {
			continue
		}
		p.set[w] = struct{}{}
		p.nouns = append(p.nouns, w)
	}
	if len(p.nouns) == 0 {
		return nil, ErrEmptyPool
	}
	return p, nil
}

// Normalize lowercases and trims a word the same way guesses are normalized.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Random returns a uniformly chosen noun.
func (p *Pool) Random() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.nouns))))
	if err != nil {
		return p.nouns[0]
	}
	return p.nouns[n.Int64()]
}

// At returns the noun at i modulo the pool size.
func (p *Pool) At(i int) string {
	if i < 0 {
		i = -i
	}
	return p.nouns[i%len(p.nouns)]
}

// Len returns the number of nouns.
func (p *Pool) Len() int { return len(p.nouns) }

var (
	initOnce    sync.Once
	defaultPool *Pool
	initialErr  error
)

// Init loads the process-wide pool exactly once: from path when set, otherwise
// the embedded defaults. Later calls return the first result.
func Init(path string) (*Pool, error) {
	initOnce.Do(func() {
		var list []string
		var err error
		if path != "" {
			list, err = readNounFile(path)
		} else {
			list, err = assets.NounList()
		}
		if err != nil {
			initialErr = err
			return
		}
		defaultPool, initialErr = NewPool(list)
	})
	return defaultPool, initialErr
}

// readNounFile loads one noun per line from a file.
func readNounFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}
