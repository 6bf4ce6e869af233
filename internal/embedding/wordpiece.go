package embedding

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	tokenCLS = "[CLS]"
	tokenSEP = "[SEP]"
	tokenUNK = "[UNK]"

	maxWordChars = 100
)

// WordPiece is the uncased BERT tokenizer used by MiniLM sentence encoders.
type WordPiece struct {
	vocab  map[string]int64
	maxLen int
	cls    int64
	sep    int64
	unk    int64
}

// LoadWordPiece reads a vocab.txt (one token per line, id = line number).
func LoadWordPiece(path string, maxLen int) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()
	return NewWordPiece(f, maxLen)
}

// NewWordPiece builds a tokenizer from a vocab stream. Sequences are truncated to
// maxLen ids including [CLS] and [SEP].
func NewWordPiece(r io.Reader, maxLen int) (*WordPiece, error) {
	vocab := make(map[string]int64)
	sc := bufio.NewScanner(r)
	var id int64
	for sc.Scan() {
		tok := strings.TrimRight(sc.Text(), "\r")
		if _, dup := vocab[tok]; !dup {
			vocab[tok] = id
		}
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	wp := &WordPiece{vocab: vocab, maxLen: maxLen}
	for _, sp := range []struct {
		name string
		dst  *int64
	}{{tokenCLS, &wp.cls}, {tokenSEP, &wp.sep}, {tokenUNK, &wp.unk}} {
		v, ok := vocab[sp.name]
		if !ok {
			return nil, fmt.Errorf("vocab missing %s", sp.name)
		}
		*sp.dst = v
	}
	if wp.maxLen < 3 {
		wp.maxLen = 256
	}
	return wp, nil
}

// Encode returns input ids framed by [CLS] ... [SEP].
func (wp *WordPiece) Encode(text string) []int64 {
	ids := []int64{wp.cls}
	limit := wp.maxLen - 1
	for _, word := range basicTokens(text) {
		for _, id := range wp.pieces(word) {
			if len(ids) >= limit {
				return append(ids, wp.sep)
			}
			ids = append(ids, id)
		}
	}
	return append(ids, wp.sep)
}

// pieces splits a single word greedily into the longest vocab entries.
func (wp *WordPiece) pieces(word string) []int64 {
	rs := []rune(word)
	if len(rs) > maxWordChars {
		return []int64{wp.unk}
	}
	var out []int64
	for start := 0; start < len(rs); {
		end := len(rs)
		found := int64(-1)
		for end > start {
			sub := string(rs[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := wp.vocab[sub]; ok {
				found = id
				break
			}
			end--
		}
		if found < 0 {
			return []int64{wp.unk}
		}
		out = append(out, found)
		start = end
	}
	return out
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// basicTokens lowercases, strips accents and splits on whitespace and punctuation.
func basicTokens(text string) []string {
	clean, _, err := transform.String(stripAccents, strings.ToLower(text))
	if err != nil {
		clean = strings.ToLower(text)
	}
	var (
		out []string
		b   strings.Builder
	)
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, r := range clean {
		switch {
		case r == 0 || r == unicode.ReplacementChar || (unicode.IsControl(r) && !unicode.IsSpace(r)):
			continue
		case unicode.IsSpace(r):
			flush()
		case isPunct(r):
			flush()
			out = append(out, string(r))
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}

// isPunct treats every non-alphanumeric ASCII symbol as punctuation, as BERT does.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
