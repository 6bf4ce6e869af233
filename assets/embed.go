// assets/embed.go
//
// Files compiled into the binary:
//   - nouns.txt:        default noun pool (one word per line, '#' comments).
//   - migrations/*.sql: ledger schema, applied in lexical order.

package assets

import (
	"bufio"
	"embed"
	"io/fs"
	"strings"
)

//go:embed nouns.txt migrations/*.sql
var FS embed.FS

func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, strings.ToLower(s))
	}
	return out, sc.Err()
}

// NounList returns the embedded default noun pool, lowercased.
func NounList() ([]string, error) {
	return readLines("nouns.txt")
}

// Migrations exposes the embedded migration directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "migrations")
	if err != nil {
		// The directory is embedded at compile time; Sub only fails on a bad path.
		panic(err)
	}
	return sub
}
