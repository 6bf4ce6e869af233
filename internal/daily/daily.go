// Package daily picks the shared target for a calendar day.
//
// Every player gets the same noun on the same UTC date. The index is a keyed
// BLAKE2b hash of the date, so the sequence cannot be predicted without the salt.
package daily

import (
	"encoding/binary"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseDateKey parses a YYYY-MM-DD key.
func ParseDateKey(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// WordIndex returns a deterministic index in [0, n) for the date's key.
func WordIndex(date time.Time, salt string, n int) int {
	if n <= 0 {
		return 0
	}
	h, err := blake2b.New256(key(salt))
	if err != nil {
		// key() never exceeds blake2b.Size.
		panic(err)
	}
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(n))
}

// key fits salt into a BLAKE2b MAC key, hashing it down when too long.
func key(salt string) []byte {
	if len(salt) <= blake2b.Size {
		return []byte(salt)
	}
	sum := blake2b.Sum512([]byte(salt))
	return sum[:]
}
