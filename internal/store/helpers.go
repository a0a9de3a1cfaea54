package store

import "strings"

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// stringsToArgs converts []string to []any for use with database/sql.
func stringsToArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

// globToLike converts a `*` glob into a LIKE pattern with `\` as escape.
func globToLike(glob string) string {
	parts := strings.Split(glob, "*")
	for i, p := range parts {
		parts[i] = likeEscape(p)
	}
	return strings.Join(parts, "%")
}
