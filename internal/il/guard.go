package il

import "fmt"

type guardKind uint8

const (
	guardTrue guardKind = iota
	guardFalse
	guardPredicate
)

// Guard is the condition under which a control flow edge is taken. It is
// either always true, its negation, or a test of a 1-bit value against 0 or 1.
// Guards are comparable with ==.
type Guard struct {
	kind   guardKind
	flag   Rvalue
	expect bool
}

// Always returns the guard of unconditional edges.
func Always() Guard {
	return Guard{kind: guardTrue}
}

// Never returns the negation of Always.
func Never() Guard {
	return Guard{kind: guardFalse}
}

// Eq returns the guard "flag == 1" if set is true and "flag == 0" otherwise.
func Eq(flag Rvalue, set bool) Guard {
	return Guard{kind: guardPredicate, flag: flag, expect: set}
}

// IsSet is Eq(flag, true).
func IsSet(flag Rvalue) Guard { return Eq(flag, true) }

// IsClear is Eq(flag, false).
func IsClear(flag Rvalue) Guard { return Eq(flag, false) }

// Negation returns the guard that holds exactly when g does not.
func (g Guard) Negation() Guard {
	switch g.kind {
	case guardTrue:
		return Never()
	case guardFalse:
		return Always()
	default:
		return Guard{kind: guardPredicate, flag: g.flag, expect: !g.expect}
	}
}

// Complements reports whether g and h are exact negations of each other.
func (g Guard) Complements(h Guard) bool {
	return g.Negation() == h
}

// IsAlways reports whether g is unconditionally true.
func (g Guard) IsAlways() bool {
	return g.kind == guardTrue
}

// Flag returns the tested value of a predicate guard.
func (g Guard) Flag() (Rvalue, bool) {
	if g.kind != guardPredicate {
		return nil, false
	}
	return g.flag, true
}

func (g Guard) String() string {
	switch g.kind {
	case guardTrue:
		return "true"
	case guardFalse:
		return "false"
	}
	if g.expect {
		return fmt.Sprintf("%s == 1", g.flag)
	}
	return fmt.Sprintf("%s == 0", g.flag)
}

// MarshalText renders the guard for exports.
func (g Guard) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}
