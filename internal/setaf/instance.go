package setaf

// RequiredAssignment is a caller-supplied assignment applied at level 0
// before search starts.
type RequiredAssignment struct {
	Arg  *Argument
	Sign Sign
}

// Instance owns all arguments and clauses of a framework. Arguments and
// original attacks are created once at construction and never destroyed;
// learned clauses are allocated from a recycling pool when possible. Original
// attacks live in a slice that is never resized and learned clauses are
// individually heap-allocated, so the back-references held by arguments stay
// valid for the clause's whole lifetime.
type Instance struct {
	arguments []Argument
	attacks   []Clause
	required  []RequiredAssignment

	// learned holds the learned clauses not yet forgotten, oldest first.
	learned *Queue[*Clause]

	// forgotten holds clauses marked forgotten that are still referenced;
	// available holds clauses ready for reuse.
	forgotten []*Clause
	available []*Clause

	// nextClauseID increases monotonically so proof lines refer to unique
	// clause ids even across recycling.
	nextClauseID int
}

// NewInstance returns an instance with numArguments arguments and numAttacks
// empty attacks. Attack ids equal their index.
func NewInstance(numArguments, numAttacks int) *Instance {
	inst := &Instance{
		arguments:    make([]Argument, numArguments),
		attacks:      make([]Clause, numAttacks),
		learned:      NewQueue[*Clause](128),
		nextClauseID: numAttacks,
	}
	for i := range inst.arguments {
		inst.arguments[i] = newArgument(i)
	}
	for i := range inst.attacks {
		inst.attacks[i] = Clause{id: i, ctype: Attack}
	}
	return inst
}

// Argument returns the argument with the given id.
func (inst *Instance) Argument(id int) *Argument {
	return &inst.arguments[id]
}

// Attack returns the original attack with the given id.
func (inst *Instance) Attack(id int) *Clause {
	return &inst.attacks[id]
}

func (inst *Instance) NumArguments() int { return len(inst.arguments) }
func (inst *Instance) NumAttacks() int   { return len(inst.attacks) }

// AddRequiredArgument records a caller-supplied assignment.
func (inst *Instance) AddRequiredArgument(arg *Argument, sign Sign) {
	inst.required = append(inst.required, RequiredAssignment{arg, sign})
}

// RequiredArguments returns the caller-supplied assignments in input order.
func (inst *Instance) RequiredArguments() []RequiredAssignment {
	return inst.required
}

// ArgumentsCopy returns pointers to all arguments in id order.
func (inst *Instance) ArgumentsCopy() []*Argument {
	args := make([]*Argument, len(inst.arguments))
	for i := range inst.arguments {
		args[i] = &inst.arguments[i]
	}
	return args
}

// newClause returns a clause of the given type, recycling storage from the
// available pool when possible.
func (inst *Instance) newClause(capacity int, ctype ClauseType) *Clause {
	var c *Clause
	if n := len(inst.available); n > 0 {
		c = inst.available[n-1]
		inst.available = inst.available[:n-1]
		c.reset(ctype)
	} else {
		c = &Clause{ctype: ctype, members: make([]member, 0, capacity)}
	}
	c.id = inst.nextClauseID
	inst.nextClauseID++
	return c
}

// NewLearnedClause returns a fresh learned clause and appends it to the
// learned FIFO.
func (inst *Instance) NewLearnedClause(capacity int) *Clause {
	c := inst.newClause(capacity, Learned)
	inst.learned.Push(c)
	return c
}

// NumLearnedClauses returns the number of learned clauses that have not been
// forgotten yet.
func (inst *Instance) NumLearnedClauses() int {
	return inst.learned.Size()
}

// recycleClause moves a forgotten, unreferenced clause from the forgotten
// list to the available pool. Clauses in any other state are left alone.
func (inst *Instance) recycleClause(c *Clause) {
	if !c.isForgotten() {
		return
	}

	last := len(inst.forgotten) - 1
	if c.forgottenIndex != last {
		moved := inst.forgotten[last]
		inst.forgotten[c.forgottenIndex] = moved
		moved.forgottenIndex = c.forgottenIndex
	}
	inst.forgotten = inst.forgotten[:last]

	inst.available = append(inst.available, c)
}

// ForgetClauses marks the n oldest learned clauses as forgotten. Clauses that
// are no longer referenced go straight to the available pool; the rest join
// the forgotten list until their last reference is dropped. Deletion proof
// lines are emitted when emitProof is set.
func (inst *Instance) ForgetClauses(n int, proof *ProofWriter, emitProof bool) {
	for ; n > 0; n-- {
		c := inst.learned.Pop()
		if emitProof {
			proof.WriteDeletion(c)
		}

		if c.isNotUsed() {
			inst.available = append(inst.available, c)
		} else {
			c.markForgotten(len(inst.forgotten))
			inst.forgotten = append(inst.forgotten, c)
		}
	}
}
