package audit

import "strings"

var truthy = map[string]struct{}{
	"true": {},
	"t":    {},
	"1":    {},
	"yes":  {},
	"y":    {},
}

// ParseBool coerces a boolean that went through delimited text. Only the
// values true, t, 1, yes and y (case-insensitive, trimmed) are true. Use it
// only where previously written output is read back.
func ParseBool(s string) bool {
	_, ok := truthy[strings.ToLower(strings.TrimSpace(s))]
	return ok
}
