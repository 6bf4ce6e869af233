package oracle

import (
	"context"
	"fmt"
	"hash/fnv"
	"unicode/utf8"
)

var cannedTemplates = []string{
	"Hmph! It's a %d-letter thing that starts with '%c', not that I care whether you find it.",
	"Tch, so slow! Begin with '%[2]c' and count %[1]d letters, if you can count at all.",
	"It's not like I want to help you, but the word hides %d letters behind a '%c'.",
}

// Canned answers offline with a letter-count riddle. The template is chosen from
// the target so the same word always gets the same line.
type Canned struct{}

func (Canned) Hint(ctx context.Context, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if target == "" {
		return "", ErrEmptyHint
	}
	first, _ := utf8.DecodeRuneInString(target)
	h := fnv.New32a()
	_, _ = h.Write([]byte(target))
	tpl := cannedTemplates[h.Sum32()%uint32(len(cannedTemplates))]
	return fmt.Sprintf(tpl, utf8.RuneCountInString(target), first), nil
}
