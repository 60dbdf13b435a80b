package setaf

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rhartert/yagh"
)

// HeuristicType selects how arguments are ordered before branching starts.
type HeuristicType uint8

const (
	// HeuristicNone keeps the id order.
	HeuristicNone HeuristicType = iota

	// HeuristicMaxOutDegree orders by the number of attacks the argument
	// occurs in as attacker, descending.
	HeuristicMaxOutDegree

	// HeuristicMinInDegree orders by the number of attacks directed at the
	// argument, ascending.
	HeuristicMinInDegree

	// HeuristicPathLength scores each argument by the discounted number of
	// attack paths starting at it, descending.
	HeuristicPathLength

	// HeuristicPathLengthModified additionally penalizes arguments that are
	// reached by many attack paths.
	HeuristicPathLengthModified
)

// Heuristics is a branching heuristic together with its parameter.
type Heuristics struct {
	Type HeuristicType

	// PathLength is the maximum path length considered by the path-length
	// heuristics.
	PathLength int
}

// ParseHeuristics parses one of None, MaxOutDegree, MinInDegree,
// PathLength<k>, or PathLengthModified<k>.
func ParseHeuristics(s string) (Heuristics, error) {
	switch s {
	case "None":
		return Heuristics{Type: HeuristicNone}, nil
	case "MaxOutDegree":
		return Heuristics{Type: HeuristicMaxOutDegree}, nil
	case "MinInDegree":
		return Heuristics{Type: HeuristicMinInDegree}, nil
	}

	if rest, ok := strings.CutPrefix(s, "PathLengthModified"); ok {
		if k, err := strconv.ParseUint(rest, 10, 16); err == nil {
			return Heuristics{Type: HeuristicPathLengthModified, PathLength: int(k)}, nil
		}
	} else if rest, ok := strings.CutPrefix(s, "PathLength"); ok {
		if k, err := strconv.ParseUint(rest, 10, 16); err == nil {
			return Heuristics{Type: HeuristicPathLength, PathLength: int(k)}, nil
		}
	}

	return Heuristics{}, fmt.Errorf("unknown heuristics %q", s)
}

// Apply computes the heuristic scores, drops arguments already assigned at or
// below dl, and returns the remaining arguments in branching order together
// with the initial guess sign for each. Argument positions are rewritten to
// match the returned order.
func (h Heuristics) Apply(inst *Instance, dl int) ([]*Argument, []Sign) {
	args := inst.ArgumentsCopy()

	if h.Type == HeuristicPathLength || h.Type == HeuristicPathLengthModified {
		attackers := attackersByTarget(inst)
		values := computePathLength(args, h.PathLength, attackers)
		if h.Type == HeuristicPathLengthModified {
			addModifiedPathLength(args, h.PathLength, values)
		}
		for i, a := range args {
			a.SetHeuristicsValue(values[i])
		}
	}

	// Drop arguments the preprocessor already assigned.
	unassigned := args[:0]
	for _, a := range args {
		if a.ValueAt(dl) == Unassigned {
			unassigned = append(unassigned, a)
		}
	}
	args = unassigned

	if h.Type != HeuristicNone {
		// An indexed heap popped to exhaustion yields the branching order.
		heap := yagh.New[float64](inst.NumArguments())
		for _, a := range args {
			cost := -a.heuristicsValue // descending
			if h.Type == HeuristicMinInDegree {
				cost = float64(len(a.attackedBy)) // ascending
			}
			heap.Put(a.id, cost)
		}
		args = args[:0]
		for {
			entry, ok := heap.Pop()
			if !ok {
				break
			}
			args = append(args, inst.Argument(entry.Elem))
		}
	}

	for i, a := range args {
		a.position = i
	}

	guessOrder := make([]Sign, len(args))
	for i := range guessOrder {
		guessOrder[i] = In
	}
	return args, guessOrder
}

// attackersByTarget returns, per argument id, every attacker occurrence of
// every attack directed at it.
func attackersByTarget(inst *Instance) [][]*Argument {
	attackers := make([][]*Argument, inst.NumArguments())
	for i := 0; i < inst.NumAttacks(); i++ {
		attack := inst.Attack(i)
		target := attack.members[0].arg
		for _, m := range attack.members[1:] {
			attackers[target.id] = append(attackers[target.id], m.arg)
		}
	}
	return attackers
}

// computePathLength returns, per argument a, sum_{i=1..k} P_i(a) / 2^i where
// P_i(a) is the number of directed attack paths of length i starting at a.
// Two scratch rows alternate between the path counts of length i-1 and i.
func computePathLength(args []*Argument, k int, attackers [][]*Argument) []float64 {
	values := make([]float64, len(args))
	counts := [2][]uint64{make([]uint64, len(args)), make([]uint64, len(args))}

	for i, a := range args {
		counts[0][i] = uint64(a.heuristicsValue)
		values[i] = a.heuristicsValue / 2.0
	}

	working, prev := 1, 0
	for length := 2; length <= k; length++ {
		for i := range args {
			counts[working][i] = 0
		}
		// A path of length i-1 starting at a target extends to a path of
		// length i starting at each of the target's attackers.
		for target := range args {
			for _, attacker := range attackers[target] {
				counts[working][attacker.id] += counts[prev][target]
			}
		}
		for i := range args {
			values[i] += float64(counts[working][i]) / math.Pow(2.0, float64(length))
		}
		working, prev = prev, working
	}

	return values
}

// addModifiedPathLength adds sum_{i=1..k} Q_i(a) / (-2)^i - |attacks(a)| / 2
// to each value, where Q_i counts attack paths of length i ending at a.
func addModifiedPathLength(args []*Argument, k int, values []float64) {
	counts := [2][]uint64{make([]uint64, len(args)), make([]uint64, len(args))}

	for i, a := range args {
		counts[0][i] = uint64(len(a.attackedBy))
		values[i] += float64(len(a.attackedBy)) / -2.0
	}

	working, prev := 1, 0
	for length := 2; length <= k; length++ {
		for i, a := range args {
			counts[working][i] = 0

			for _, attack := range a.attackedBy {
				for _, m := range attack.members[1:] {
					counts[working][i] += counts[prev][m.arg.id]
				}
			}

			values[i] += float64(counts[working][i]) / math.Pow(-2.0, float64(length))
		}
		working, prev = prev, working
	}

	for i, a := range args {
		values[i] -= float64(len(a.attackedBy) / 2) // integer division
	}
}
