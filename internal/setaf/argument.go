package setaf

import (
	"fmt"
	"strconv"
)

// Argument is a vertex of the framework together with its mutable search
// state: the current assignment, the clause that forced it, the watch lists
// and the stability witness bookkeeping.
type Argument struct {
	// id is stable for the lifetime of the instance; position is the index
	// in the current branching order and is rewritten by the heuristics.
	id       int
	position int
	name     string

	value  Sign
	dl     int
	reason *Clause

	// heuristicsValue starts as the number of distinct attacks this argument
	// occurs in as attacker; the path-length heuristics overwrite it.
	heuristicsValue float64

	// attackedBy lists the original attacks directed at this argument.
	attackedBy []*Clause

	// watchedIn lists the clauses currently watching this argument, with a
	// clause-id index to allow O(1) swap-remove.
	watchedIn      []*Clause
	watchedInIndex map[int]int

	// watchedAttackIndex is the index in attackedBy of the attack serving as
	// stability witness while this argument is Out.
	watchedAttackIndex int

	// stabilityWatch lists the Out arguments whose witness this argument is
	// an attacker of, with the witness attack's index in their attackedBy.
	stabilityWatch []stabilityWatch
}

type stabilityWatch struct {
	arg   *Argument
	index int
}

func newArgument(id int) Argument {
	return Argument{
		id:             id,
		position:       id,
		name:           strconv.Itoa(id + 1),
		dl:             dlUnassigned,
		watchedInIndex: map[int]int{},
	}
}

func (a *Argument) ID() int { return a.id }

// Position returns the index of this argument in the branching order.
func (a *Argument) Position() int { return a.position }

// Name returns the display name, the 1-based id unless a description file
// renamed the argument.
func (a *Argument) Name() string { return a.name }

func (a *Argument) SetName(name string) { a.name = name }

// Value returns the assigned value regardless of decision level.
func (a *Argument) Value() Sign { return a.value }

// ValueAt returns the assigned value, or Unassigned if the assignment
// happened above the given decision level.
func (a *Argument) ValueAt(dl int) Sign {
	if a.dl > dl {
		return Unassigned
	}
	return a.value
}

// DL returns the decision level of the current assignment.
func (a *Argument) DL() int { return a.dl }

// Reason returns the clause that forced the current assignment, or nil for a
// guess or a level-0 forced assignment.
func (a *Argument) Reason() *Clause { return a.reason }

func (a *Argument) HeuristicsValue() float64     { return a.heuristicsValue }
func (a *Argument) SetHeuristicsValue(v float64) { a.heuristicsValue = v }

// AttackedBy returns the original attacks directed at this argument.
func (a *Argument) AttackedBy() []*Clause { return a.attackedBy }

// setValue records the assignment and swaps the reason reference, releasing
// the prior reason's usage and recycling it if it became unreferenced.
func (a *Argument) setValue(value Sign, dl int, reason *Clause, inst *Instance) {
	a.value = value
	a.dl = dl

	if prev := a.reason; prev != nil && prev.decUse() {
		inst.recycleClause(prev)
	}
	a.reason = reason
	if reason != nil {
		reason.incUse()
	}
}

// reset clears the value and decision level. The reason reference is kept
// until the next assignment overwrites it, so the reason clause stays
// referenced while the argument can still be asked to explain itself.
func (a *Argument) reset() {
	a.value = Unassigned
	a.dl = dlUnassigned
}

// addWatchedIn registers clause as watching this argument and increments the
// clause's usage counter.
func (a *Argument) addWatchedIn(c *Clause) {
	c.incUse()
	a.watchedInIndex[c.id] = len(a.watchedIn)
	a.watchedIn = append(a.watchedIn, c)
}

// removeWatchedIn unregisters clause from this argument's watch list using
// swap-remove. It reports whether the clause's usage counter reached zero.
func (a *Argument) removeWatchedIn(c *Clause) bool {
	index, ok := a.watchedInIndex[c.id]
	if !ok {
		panic(fmt.Sprintf("clause %d not watched in argument %s", c.id, a.name))
	}
	delete(a.watchedInIndex, c.id)

	last := len(a.watchedIn) - 1
	if index != last {
		moved := a.watchedIn[last]
		a.watchedIn[index] = moved
		a.watchedInIndex[moved.id] = index
	}
	a.watchedIn = a.watchedIn[:last]

	return c.decUse()
}

// setWatchedAttackIndex makes attackedBy[index] the stability witness of this
// argument and registers this argument on the stability watch of each of the
// witness's attackers.
func (a *Argument) setWatchedAttackIndex(attack *Clause, index int) {
	a.watchedAttackIndex = index
	for i := 1; i < len(attack.members); i++ {
		attacker := attack.members[i].arg
		attacker.stabilityWatch = append(attacker.stabilityWatch, stabilityWatch{a, index})
	}
}

func (a *Argument) String() string {
	if a.value == Unassigned {
		return "?" + a.name
	}
	reason := "guess"
	if a.reason != nil {
		reason = strconv.Itoa(a.reason.id)
	}
	prefix := ""
	if a.value == Out {
		prefix = "-"
	}
	return fmt.Sprintf("%s%s@%d<-%s", prefix, a.name, a.dl, reason)
}
