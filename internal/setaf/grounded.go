package setaf

// groundedAttack tracks one attack during the grounded computation: how many
// of its attackers are still unassigned, and whether some attacker went Out,
// which blocks the attack for good.
type groundedAttack struct {
	notSet  int
	target  *Argument
	blocked bool
}

// groundedTodo is a pending forced assignment: In when reason is nil, Out
// with the reason attack otherwise.
type groundedTodo struct {
	arg    *Argument
	reason *Clause
}

// computeGrounded forces all assignments implied by the grounded semantics
// before branching starts: arguments without a non-blocked incoming attack
// are In, arguments with a non-blocked attack whose attackers are all In are
// Out. It reports false if a forced assignment conflicts, in which case the
// instance has no stable extension.
func (s *Solver) computeGrounded() bool {
	attacks := make([]groundedAttack, 0, s.inst.NumAttacks())

	// Per argument id: the attacks it occurs in as attacker, and the number
	// of non-blocked attacks directed at it.
	containedIn := make([][]*Clause, s.inst.NumArguments())
	incoming := make([]int, s.inst.NumArguments())

	for i := 0; i < s.inst.NumAttacks(); i++ {
		attack := s.inst.Attack(i)

		notSet := 0
		blocked := false
		for _, m := range attack.members[1:] {
			containedIn[m.arg.id] = append(containedIn[m.arg.id], attack)
			if !blocked {
				switch m.arg.Value() {
				case Out:
					blocked = true
				case Unassigned:
					notSet++
				}
			}
		}

		target := attack.AttackedArgument()
		if !blocked {
			incoming[target.id]++
		}
		attacks = append(attacks, groundedAttack{notSet: notSet, target: target, blocked: blocked})
	}

	var todo []groundedTodo

	// Unattacked arguments are In.
	for id, count := range incoming {
		if count == 0 {
			todo = append(todo, groundedTodo{arg: s.inst.Argument(id)})
		}
	}

	// Arguments with a non-blocked attack carried entirely by In attackers
	// are Out.
	for i := range attacks {
		if !attacks[i].blocked && attacks[i].notSet == 0 {
			todo = append(todo, groundedTodo{arg: attacks[i].target, reason: s.inst.Attack(i)})
		}
	}

	for len(todo) > 0 {
		item := todo[len(todo)-1]
		todo = todo[:len(todo)-1]

		sign := In
		if item.reason != nil {
			sign = Out
		}

		if s.proof != nil && item.arg.ValueAt(0) == Unassigned {
			s.buildImplicitClause(item.arg)
		}

		if s.setAndPropagate(item.arg, sign, item.reason) != nil {
			return false
		}

		// Update the attacks the argument participates in as attacker.
		for _, attack := range containedIn[item.arg.id] {
			ga := &attacks[attack.id]
			if ga.blocked {
				continue
			}

			if sign == Out {
				ga.blocked = true
				incoming[ga.target.id]--
				if incoming[ga.target.id] == 0 {
					// The last non-blocked attack on the target is gone.
					todo = append(todo, groundedTodo{arg: ga.target})
				}
			} else {
				ga.notSet--
				if ga.notSet == 0 {
					todo = append(todo, groundedTodo{arg: ga.target, reason: attack})
				}
			}
		}
	}

	return true
}
