package sandbox

import "regexp"

// Policy chooses the tier an expression runs in.
type Policy interface {
	Select(expr string) Tier
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(expr string) Tier

func (f PolicyFunc) Select(expr string) Tier {
	return f(expr)
}

var unsafeChars = regexp.MustCompile("[()`]")

// UnsafeCharPolicy isolates any expression that could call a function or
// build a template literal. Everything else runs on the fast tier.
type UnsafeCharPolicy struct{}

func (UnsafeCharPolicy) Select(expr string) Tier {
	if unsafeChars.MatchString(expr) {
		return TierIsolated
	}
	return TierFast
}

// IsUnsafe reports whether expr contains a character that forces isolation.
func IsUnsafe(expr string) bool {
	return unsafeChars.MatchString(expr)
}
