package setaf

import "math"

// Sign is the ternary assignment value of an argument: it is either part of
// the extension (In), attacked by it (Out), or not decided yet (Unassigned).
// In a clause member, the sign is the value the member's argument must take
// for the member to be satisfied.
type Sign int8

const (
	Unassigned Sign = 0
	In         Sign = 1
	Out        Sign = -1
)

// Opposite returns the opposite sign as follows:
//
//	In -> Out
//	Out -> In
//	Unassigned -> Unassigned
func (s Sign) Opposite() Sign {
	return -s
}

func (s Sign) String() string {
	switch s {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return "unassigned"
	}
}

// dlUnassigned is the decision level of arguments that have no value. It
// compares greater than every reachable decision level.
const dlUnassigned = math.MaxInt
