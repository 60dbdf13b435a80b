package setaf

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/stabl-solver/stabl/internal/signals"
)

// Options configures a Solver.
type Options struct {
	// Heuristics orders the arguments before branching.
	Heuristics Heuristics

	// MaxModels stops the enumeration after that many models; 0 means
	// enumerate all.
	MaxModels uint64

	// PrintModels writes each model to Output as it is found.
	PrintModels bool

	// StoreModels keeps every model on Solver.Models. Off by default since
	// enumerations can produce exponentially many models.
	StoreModels bool

	// ForgetFraction is the fraction of learned clauses dropped when the
	// forget threshold is exceeded; ForgetGrowthRate scales the threshold
	// after each forget cycle.
	ForgetFraction   float64
	ForgetGrowthRate float64

	// Output receives model lines; defaults to os.Stdout.
	Output io.Writer

	// Proof, when set, receives clause records until the first model.
	Proof *ProofWriter
}

// DefaultOptions mirror the CLI defaults.
var DefaultOptions = Options{
	PrintModels:      true,
	ForgetFraction:   0.5,
	ForgetGrowthRate: 2,
}

// Statistics counts search events.
type Statistics struct {
	Decisions    uint64
	Conflicts    uint64
	Propagations uint64
}

// Solver enumerates the stable extensions of an instance with a
// conflict-driven search: two-watched-member propagation over attacks and
// learned clauses, a per-argument stability witness for Out assignments,
// first-UIP style conflict resolution and non-chronological backtracking.
type Solver struct {
	inst       *Instance
	heuristics Heuristics

	maxModels   uint64
	printModels bool
	storeModels bool
	out         io.Writer
	proof       *ProofWriter

	forgetFraction  float64
	growthRate      float64
	forgetThreshold float64

	currentDl        int
	backjumpingBound int

	// nextGuessPosition indexes the branching order; assigned holds every
	// currently assigned argument in assignment order.
	nextGuessPosition int
	assigned          []*Argument

	// seenIDs and workMembers are scratch space for conflict resolution and
	// implicit clause construction, kept to avoid reallocation.
	seenIDs     *ResetSet
	workMembers []member

	// ModelCount and FirstModelTime describe the models produced so far;
	// PercentageSolved is the explored fraction of the search tree, set by
	// Solve.
	ModelCount       uint64
	FirstModelTime   time.Time
	PercentageSolved float64

	// Models holds the enumerated models when StoreModels is set, each
	// indexed by argument id with true meaning In.
	Models [][]bool

	Stats Statistics
}

// NewSolver returns a solver for the given instance.
func NewSolver(inst *Instance, opts Options) *Solver {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return &Solver{
		inst:            inst,
		heuristics:      opts.Heuristics,
		maxModels:       opts.MaxModels,
		printModels:     opts.PrintModels,
		storeModels:     opts.StoreModels,
		out:             out,
		proof:           opts.Proof,
		forgetFraction:  opts.ForgetFraction,
		growthRate:      opts.ForgetGrowthRate,
		forgetThreshold: float64(inst.NumArguments()),
		assigned:        make([]*Argument, 0, inst.NumArguments()),
		seenIDs:         NewResetSet(inst.NumArguments()),
	}
}

// Solve enumerates the stable extensions. On return, ModelCount holds the
// number of models found and PercentageSolved the explored fraction of the
// search tree (1.0 on exhaustion).
func (s *Solver) Solve() {
	s.PercentageSolved = s.enumerateStable()

	if s.proof != nil && s.ModelCount == 0 {
		s.proof.WriteUnsat()
	}
}

// printAssignment emits the current full assignment as a model and reports
// whether the requested number of models has been reached.
func (s *Solver) printAssignment() bool {
	if s.ModelCount == 0 {
		s.FirstModelTime = time.Now()
	}
	s.ModelCount++

	if s.storeModels {
		model := make([]bool, s.inst.NumArguments())
		for i := range model {
			model[i] = s.inst.Argument(i).Value() == In
		}
		s.Models = append(s.Models, model)
	}

	if s.printModels {
		fmt.Fprintf(s.out, "Model %d\n", s.ModelCount)
		first := true
		for i := 0; i < s.inst.NumArguments(); i++ {
			arg := s.inst.Argument(i)
			if arg.Value() != In {
				continue
			}
			if !first {
				fmt.Fprint(s.out, " ")
			}
			fmt.Fprint(s.out, arg.Name())
			first = false
		}
		fmt.Fprintln(s.out)
	}

	return s.maxModels == s.ModelCount
}

// checkAndForgetClauses triggers a forget cycle once the number of learned
// clauses exceeds the threshold, then grows the threshold.
func (s *Solver) checkAndForgetClauses() {
	count := float64(s.inst.NumLearnedClauses())
	if count > s.forgetThreshold {
		emit := s.proof != nil && s.ModelCount == 0
		s.inst.ForgetClauses(int(count*s.forgetFraction), s.proof, emit)
		s.forgetThreshold *= s.growthRate
	}
}

func (s *Solver) writeProofClause(c *Clause, implicit bool) {
	if s.proof != nil && s.ModelCount == 0 {
		s.proof.WriteClause(c, implicit)
	}
}

// buildImplicitClause builds the learned clause expressing that arg must be
// In or some attacker of an attack on arg must be In. It is produced when an
// Out assignment for arg has no stability witness left and serves as the
// conflicting clause that starts backtracking.
func (s *Solver) buildImplicitClause(arg *Argument) *Clause {
	c := s.inst.NewLearnedClause(len(arg.attackedBy))
	c.AddArgument(arg, In)

	s.seenIDs.Clear()

	// From every attack on arg, pick one attacker currently assigned its
	// expected sign, preferring the highest decision level so that
	// resolution against the clause stays possible.
	for _, attack := range arg.attackedBy {
		if attack.isSelfAttack() {
			continue
		}
		var selected *Argument
		for i := 1; i < len(attack.members); i++ {
			m := attack.members[i]
			if (selected == nil || m.arg.dl > selected.dl) && m.arg.ValueAt(s.currentDl) == m.sign {
				selected = m.arg
				if selected.dl == s.currentDl {
					break
				}
			}
		}
		if selected == nil {
			continue
		}
		if !s.seenIDs.Contains(selected.id) {
			s.seenIDs.Add(selected.id)
			c.AddArgument(selected, selected.value.Opposite())
		}
	}

	s.writeProofClause(c, true)
	return c
}

// recomputeWatchedAttack finds a new stability witness for an Out argument.
// When forIndex is valid, the call was triggered by an attacker of
// attackedBy[forIndex] going Out and is a no-op unless that attack still is
// the witness. Returns the implicit conflict clause if no witness exists.
func (s *Solver) recomputeWatchedAttack(arg *Argument, forIndex int, haveForIndex bool) *Clause {
	if arg.ValueAt(s.currentDl) != Out {
		return nil
	}
	if len(arg.attackedBy) == 0 {
		return s.buildImplicitClause(arg)
	}

	index := arg.watchedAttackIndex
	if haveForIndex {
		if index != forIndex {
			return nil
		}
		// The watched attack is known blocked; start the scan after it.
		index++
		if index == len(arg.attackedBy) {
			index = 0
		}
	}

	for {
		attack := arg.attackedBy[index]
		if attack.isNotBlocked(s.currentDl) {
			arg.setWatchedAttackIndex(attack, index)
			return nil
		}

		index++
		if index == len(arg.attackedBy) {
			index = 0
		}
		if index == arg.watchedAttackIndex {
			break
		}
	}

	return s.buildImplicitClause(arg)
}

// checkClause restores the watch invariant of a clause after arg was
// assigned, or of both watches when arg is nil. If every other member is
// unsatisfied the clause asserts its remaining watch, and the result of that
// propagation is returned. moved, when non-nil, reports whether the clause
// left arg's watch list.
func (s *Solver) checkClause(c *Clause, arg *Argument, moved *bool) *Clause {
	for {
		watch, other := c.firstWatch, c.secondWatch
		if arg != nil && arg != c.members[watch].arg {
			watch, other = other, watch
		}

		// Scan circularly for a member that is unassigned or satisfied.
		start := watch
		for {
			if watch != other {
				m := &c.members[watch]
				if m.arg.Value() != m.sign.Opposite() {
					break
				}
			}

			watch++
			if watch == len(c.members) {
				watch = 0
			}
			if watch == start {
				// Every member except the other watch is unsatisfied, so the
				// clause asserts the other watch.
				om := &c.members[other]
				return s.setAndPropagate(om.arg, om.sign, c)
			}
		}

		wasMoved := c.setWatch(start == c.firstWatch, watch)
		if moved != nil {
			*moved = wasMoved
		}

		if arg != nil {
			return nil
		}
		// No specific argument: verify the other watch on a second pass.
		arg = c.members[other].arg
	}
}

// setAndPropagate assigns value to arg and propagates through the watched
// clauses, then maintains the stability witnesses affected by an Out
// assignment. It returns the conflicting clause if the assignment leads to a
// conflict, or nil. A nil return with arg already assigned the opposite sign
// at level 0 signals unrecoverable failure.
func (s *Solver) setAndPropagate(arg *Argument, value Sign, reason *Clause) *Clause {
	if arg.dl <= s.currentDl {
		if arg.value == value {
			return nil
		}
		return reason
	}

	s.Stats.Propagations++
	s.assigned = append(s.assigned, arg)
	arg.setValue(value, s.currentDl, reason, s.inst)

	// Indexed iteration: checkClause may swap-remove entries of the list.
	for i := 0; i < len(arg.watchedIn); {
		c := arg.watchedIn[i]

		if c.isForgotten() {
			if arg.removeWatchedIn(c) {
				s.inst.recycleClause(c)
			}
			continue // another clause was swapped into index i
		}

		if c.watchesInvalid(s.currentDl) {
			didMove := false
			if result := s.checkClause(c, arg, &didMove); result != nil {
				return result
			}
			if didMove {
				continue
			}
		}
		i++
	}

	if value == In {
		return nil
	}

	// arg went Out: every witness it participates in is now blocked.
	for len(arg.stabilityWatch) > 0 {
		entry := arg.stabilityWatch[len(arg.stabilityWatch)-1]
		arg.stabilityWatch = arg.stabilityWatch[:len(arg.stabilityWatch)-1]
		if result := s.recomputeWatchedAttack(entry.arg, entry.index, true); result != nil {
			arg.stabilityWatch = append(arg.stabilityWatch, entry)
			return result
		}
	}

	// arg itself needs a witness, unless the reason is an attack directed at
	// arg, which is its own witness.
	if reason == nil || !reason.isAttack() || reason.AttackedArgument() != arg {
		return s.recomputeWatchedAttack(arg, 0, false)
	}
	return nil
}

// resolveConflictAndUpdateDL analyses a conflicting clause, lowers currentDl
// to the backtracking target and returns the clause to act on together with
// the UIP argument to flip (nil when the pending decision literal must be
// flipped instead). A nil clause means the search space is exhausted.
func (s *Solver) resolveConflictAndUpdateDL(conflicting *Clause) (*Clause, *Argument) {
	// A flipped literal caused the conflict; the level is exhausted.
	if s.currentDl == s.backjumpingBound {
		if s.currentDl == 0 {
			return nil, nil
		}
		s.currentDl--
		s.backjumpingBound = s.currentDl
		return conflicting, nil
	}

	uip := conflicting.members[0].arg
	highestDl := uip.dl
	secondHighestDl := math.MaxInt
	atMaxDl := 1
	for _, m := range conflicting.members[1:] {
		switch dl := m.arg.dl; {
		case dl > highestDl:
			uip = m.arg
			secondHighestDl = highestDl
			highestDl = dl
			atMaxDl = 1
		case dl == highestDl:
			atMaxDl++
			if m.arg.reason != nil {
				uip = m.arg
			}
		case secondHighestDl == math.MaxInt || dl > secondHighestDl:
			secondHighestDl = dl
		}
	}

	if highestDl == 0 {
		return nil, nil
	}
	if secondHighestDl > highestDl {
		// Single decision level in the clause.
		secondHighestDl = 0
	}

	// Already asserting: back off to the second highest level and flip.
	if atMaxDl == 1 {
		s.currentDl = max(s.backjumpingBound, secondHighestDl)
		return conflicting, uip
	}

	// Resolve on the highest level until a single member remains.
	learned := s.inst.NewLearnedClause(1)
	s.workMembers = s.workMembers[:0]
	s.seenIDs.Clear()

	for _, m := range conflicting.members {
		s.seenIDs.Add(m.arg.id)
		if m.arg.dl < highestDl {
			learned.AddArgument(m.arg, m.sign)
		} else {
			s.workMembers = append(s.workMembers, m)
		}
	}

	for len(s.workMembers) > 1 {
		last := len(s.workMembers) - 1
		entry := s.workMembers[last]
		if entry.arg.reason != nil {
			s.workMembers = s.workMembers[:last]
		} else {
			// The last entry is the decision literal; resolve on the first
			// entry instead.
			entry = s.workMembers[0]
			s.workMembers[0] = s.workMembers[last]
			s.workMembers = s.workMembers[:last]
		}

		s.seenIDs.Remove(entry.arg.id)
		reason := entry.arg.reason
		for _, rm := range reason.members {
			if rm.arg.id == entry.arg.id || s.seenIDs.Contains(rm.arg.id) {
				continue
			}
			s.seenIDs.Add(rm.arg.id)
			if rm.arg.dl == highestDl {
				s.workMembers = append(s.workMembers, rm)
			} else {
				learned.AddArgument(rm.arg, rm.sign)
			}
		}
	}

	// The last member at the highest level is the UIP.
	uipMember := s.workMembers[0]
	learned.AddArgument(uipMember.arg, uipMember.sign)

	highestDl = 0
	secondHighestDl = 0
	for _, m := range learned.members {
		if m.arg.dl > highestDl {
			secondHighestDl = highestDl
			highestDl = m.arg.dl
		}
	}
	s.currentDl = max(s.backjumpingBound, secondHighestDl)

	s.writeProofClause(learned, false)
	return learned, uipMember.arg
}

// backtrackForClause resolves the given conflict, undoes assignments and
// flips the UIP or decision literal, repeating while the re-checked clause
// keeps conflicting. It returns false when the search space is exhausted.
func (s *Solver) backtrackForClause(conflicting *Clause) bool {
	clause := conflicting
	for clause != nil {
		s.Stats.Conflicts++

		prevDl := s.currentDl
		next, uip := s.resolveConflictAndUpdateDL(clause)
		if next == nil {
			return false
		}
		clause = next

		if prevDl != s.currentDl {
			if uip == nil {
				arg, oldSign := s.backtrackToCurrentDL()
				if !s.doAssignment(arg, oldSign.Opposite(), nil) {
					return false
				}
			} else {
				oldSign := uip.value
				s.backtrackToCurrentDL()
				if !s.doAssignment(uip, oldSign.Opposite(), clause) {
					return false
				}
			}
		}

		// The clause may have become asserting; re-checking it can trigger
		// further propagation and a fresh conflict.
		clause = s.checkClause(clause, nil, nil)
	}
	return true
}

// backtrackToCurrentDL undoes every assignment above currentDl. It returns
// the last undone argument, which is the decision literal of the uncovered
// level, together with its former sign.
func (s *Solver) backtrackToCurrentDL() (*Argument, Sign) {
	var arg *Argument
	oldSign := In

	for len(s.assigned) > 0 && s.assigned[len(s.assigned)-1].dl > s.currentDl {
		arg = s.assigned[len(s.assigned)-1]
		oldSign = arg.value
		arg.reset()
		s.nextGuessPosition = min(s.nextGuessPosition, arg.position)
		s.assigned = s.assigned[:len(s.assigned)-1]
	}

	return arg, oldSign
}

// doAssignment performs an assignment including conflict handling and
// reports whether the search continues.
func (s *Solver) doAssignment(arg *Argument, sign Sign, reason *Clause) bool {
	if result := s.setAndPropagate(arg, sign, reason); result != nil {
		return s.backtrackForClause(result)
	}
	if s.nextGuessPosition == arg.position {
		s.nextGuessPosition++
	}
	return true
}

// enumerateStable drives the enumeration and returns the explored fraction
// of the search tree.
func (s *Solver) enumerateStable() float64 {
	// Zero arguments: the empty set is the single stable extension.
	if s.inst.NumArguments() == 0 {
		s.printAssignment()
		return 1.0
	}

	// Attacks with the attacked argument as only member are self-attacks
	// whose target can never be defended: force Out at level 0.
	for i := 0; i < s.inst.NumAttacks(); i++ {
		attack := s.inst.Attack(i)
		if attack.Len() == 1 {
			if s.setAndPropagate(attack.AttackedArgument(), Out, nil) != nil {
				return 1.0
			}
		}
	}

	for _, req := range s.inst.RequiredArguments() {
		if req.Arg.Value().Opposite() == req.Sign || s.setAndPropagate(req.Arg, req.Sign, nil) != nil {
			return 1.0
		}
	}

	if !s.computeGrounded() {
		return 1.0
	}

	sorted, guessOrder := s.heuristics.Apply(s.inst, s.currentDl)

	for {
		if signals.Received() {
			return s.calculatePercentageSolved(sorted, guessOrder)
		}

		s.checkAndForgetClauses()

		if s.nextGuessPosition == len(sorted) {
			// Full assignment.
			if s.printAssignment() {
				_ = s.calculatePercentageSolved(sorted, guessOrder)
				return 1.0
			}

			if s.currentDl == 0 {
				return 1.0
			}

			// Flip the last decision literal.
			s.currentDl--
			s.backjumpingBound = s.currentDl
			arg, oldSign := s.backtrackToCurrentDL()
			if !s.doAssignment(arg, oldSign.Opposite(), nil) {
				return 1.0
			}
			continue
		}

		arg := sorted[s.nextGuessPosition]
		if arg.Value() != Unassigned {
			s.nextGuessPosition++
			continue
		}

		s.Stats.Decisions++
		s.currentDl++
		if !s.doAssignment(arg, guessOrder[s.nextGuessPosition], nil) {
			return 1.0
		}
	}
}

// calculatePercentageSolved estimates the fraction of the search tree
// explored so far: every position whose argument sits on the flipped branch
// contributes its subtree's weight.
func (s *Solver) calculatePercentageSolved(sorted []*Argument, guessOrder []Sign) float64 {
	percentage := 0.0
	for i, arg := range sorted {
		if arg.ValueAt(s.currentDl) == guessOrder[i].Opposite() {
			percentage += math.Pow(0.5, float64(i+1))
		}
	}
	return percentage
}
