package repository

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/jmoiron/sqlx"
)

// slugify lowercases the input and collapses runs of non-alphanumerics into
// single hyphens.
func slugify(parts ...string) string {
	joined := strings.Join(parts, " ")
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(joined) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// uniqueSlug appends an incrementing numeric suffix until the slug is free
// in the given table. Table names come from fixed constants, never input.
func uniqueSlug(ctx context.Context, ext sqlx.ExtContext, table, base string) (string, error) {
	if base == "" {
		base = "entry"
	}
	candidate := base
	for i := 2; ; i++ {
		var exists bool
		query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE slug = $1)`, table)
		if err := sqlx.GetContext(ctx, ext, &exists, query, candidate); err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
