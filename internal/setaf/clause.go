package setaf

import (
	"strconv"
	"strings"
)

// ClauseType distinguishes original attacks, attacks whose attacker set
// contains the attacked argument, learned clauses, and learned clauses that
// were forgotten but are still referenced.
type ClauseType uint8

const (
	Attack ClauseType = iota
	SelfAttack
	Learned
	Forgotten
)

// member is a literal of a clause: an argument together with the sign it must
// be assigned for the member to be satisfied. For an attack, members[0] is
// the attacked argument with sign Out and the rest are the attackers, also
// with sign Out.
type member struct {
	arg  *Argument
	sign Sign
}

// Clause is a disjunction of members, watched at two distinct member indices
// once it holds at least two members.
type Clause struct {
	id          int
	firstWatch  int
	secondWatch int
	members     []member
	ctype       ClauseType

	// usage counts the watch slots and reason references that still point at
	// this clause. A forgotten clause with usage 0 can be recycled.
	usage int

	// forgottenIndex is this clause's position in the instance's forgotten
	// list; only meaningful while ctype is Forgotten.
	forgottenIndex int
}

func (c *Clause) ID() int { return c.id }

func (c *Clause) Type() ClauseType { return c.ctype }

// Len returns the number of members.
func (c *Clause) Len() int { return len(c.members) }

// Member returns the argument and expected sign of the member at index i.
func (c *Clause) Member(i int) (*Argument, Sign) {
	m := c.members[i]
	return m.arg, m.sign
}

// reset puts a recycled clause into a known empty state so that its storage
// can be reused.
func (c *Clause) reset(ctype ClauseType) {
	c.firstWatch = 0
	c.secondWatch = 0
	c.ctype = ctype
	c.members = c.members[:0]
}

// SetAttacked sets the attacked argument as the first member and registers
// this clause in the argument's attackedBy list. Only meaningful for
// original attacks.
func (c *Clause) SetAttacked(arg *Argument, sign Sign) {
	c.AddArgument(arg, sign)
	arg.attackedBy = append(arg.attackedBy, c)
}

// AttackedArgument returns the attacked argument of an attack.
func (c *Clause) AttackedArgument() *Argument {
	return c.members[0].arg
}

// AddArgument appends a member, watching it while the clause has fewer than
// two members.
func (c *Clause) AddArgument(arg *Argument, sign Sign) {
	if len(c.members) < 2 {
		arg.addWatchedIn(c)
		if len(c.members) == 1 {
			c.secondWatch = 1
		}
	}
	c.members = append(c.members, member{arg, sign})
}

func (c *Clause) incUse() {
	c.usage++
}

// decUse decrements the usage counter and reports whether it reached zero.
func (c *Clause) decUse() bool {
	c.usage--
	return c.usage == 0
}

func (c *Clause) isNotUsed() bool {
	return c.usage == 0
}

// MarkSelfAttack flags an attack whose attacker set contains the attacked
// argument itself.
func (c *Clause) MarkSelfAttack() {
	c.ctype = SelfAttack
}

func (c *Clause) markForgotten(index int) {
	c.ctype = Forgotten
	c.forgottenIndex = index
}

func (c *Clause) isSelfAttack() bool { return c.ctype == SelfAttack }
func (c *Clause) isForgotten() bool  { return c.ctype == Forgotten }
func (c *Clause) isAttack() bool     { return c.ctype == Attack }

// isNotBlocked reports whether the attack can still become a stability
// witness at the given level: no attacker is Out. Self-attacks can never
// serve as witness.
func (c *Clause) isNotBlocked(dl int) bool {
	if c.isSelfAttack() {
		return false
	}
	for i := 1; i < len(c.members); i++ {
		if c.members[i].arg.ValueAt(dl) == Out {
			return false
		}
	}
	return true
}

// setWatch moves the selected watch to the given member index, updating the
// watch lists of the arguments involved. It reports whether the watch
// actually moved.
func (c *Clause) setWatch(isFirst bool, index int) bool {
	watch := &c.secondWatch
	if isFirst {
		watch = &c.firstWatch
	}
	if *watch == index {
		return false
	}

	// The usage counter is decremented and re-incremented across the two
	// calls; the clause cannot become unreferenced in between because the
	// other watch still holds it.
	c.members[*watch].arg.removeWatchedIn(c)
	c.members[index].arg.addWatchedIn(c)
	*watch = index
	return true
}

// watchesInvalid reports whether both watched members are unsatisfied at the
// given level. Callers guarantee that at least one watched argument is
// assigned.
func (c *Clause) watchesInvalid(dl int) bool {
	first := c.members[c.firstWatch]
	second := c.members[c.secondWatch]
	return first.arg.ValueAt(dl) != first.sign && second.arg.ValueAt(dl) != second.sign
}

func (c *Clause) String() string {
	sb := strings.Builder{}
	sb.WriteString(strconv.Itoa(c.id))
	sb.WriteString(":")
	for i, m := range c.members {
		sb.WriteByte(' ')
		if i == c.firstWatch {
			sb.WriteByte('(')
		}
		if i == c.secondWatch {
			sb.WriteByte('[')
		}
		if m.sign == Out {
			sb.WriteByte('-')
		}
		sb.WriteString(m.arg.name)
		sb.WriteString("=" + strconv.Itoa(int(m.arg.value)))
		if i == c.secondWatch {
			sb.WriteByte(']')
		}
		if i == c.firstWatch {
			sb.WriteByte(')')
		}
	}
	return sb.String()
}
