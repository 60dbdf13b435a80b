// Package simplefmt reads SETAF instances in the simple line format: a
// preamble with the argument and attack counts, then one attack per line,
// every line terminated by a 0. Companion files can rename arguments and
// force assignments.
package simplefmt

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/stabl-solver/stabl/internal/setaf"
	"github.com/stabl-solver/stabl/internal/signals"
)

// ParseError describes a malformed input file. Line is the offending line,
// empty for file-level problems.
type ParseError struct {
	File string
	Line string
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("%s: %s", e.File, e.Msg)
	}
	return fmt.Sprintf("%s: line %q: %s", e.File, e.Line, e.Msg)
}

// Parse reads the instance file and, when non-empty, the description and
// required-arguments files. Subsumed attacks (attacker set a superset of
// another attack on the same argument) are dropped.
func Parse(instancePath, descriptionPath, requiredPath string) (*setaf.Instance, error) {
	inst, err := parseInstanceFile(instancePath)
	if err != nil {
		return nil, err
	}

	names := map[string]*setaf.Argument{}
	if descriptionPath != "" {
		if signals.Received() {
			return nil, signals.ErrInterrupted
		}
		if err := applyDescriptions(descriptionPath, inst, names); err != nil {
			return nil, err
		}
	}

	if requiredPath != "" {
		if signals.Received() {
			return nil, signals.ErrInterrupted
		}
		if err := applyRequired(requiredPath, inst, names); err != nil {
			return nil, err
		}
	}

	return inst, nil
}

// lineReader yields the data lines of a simple-format file, skipping blank
// and comment lines and trimming trailing carriage returns.
type lineReader struct {
	file    *os.File
	scanner *bufio.Scanner
	path    string
}

func openLineReader(path string) (*lineReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	return &lineReader{file: f, scanner: bufio.NewScanner(f), path: path}, nil
}

func (r *lineReader) close() {
	r.file.Close()
}

// next returns the next data line, or false when the file is exhausted.
func (r *lineReader) next() (string, bool, error) {
	for r.scanner.Scan() {
		if signals.Received() {
			return "", false, signals.ErrInterrupted
		}

		line := strings.TrimSuffix(r.scanner.Text(), "\r")
		if line == "" || line[0] == '#' {
			continue
		}
		return line, true, nil
	}
	return "", false, errors.Wrapf(r.scanner.Err(), "could not read %s", r.path)
}

// nextValues returns the next line parsed as non-negative integers with the
// terminating 0 stripped.
func (r *lineReader) nextValues() ([]int, string, bool, error) {
	line, ok, err := r.next()
	if !ok || err != nil {
		return nil, "", ok, err
	}

	fields := strings.Fields(line)
	values := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, "", false, &ParseError{r.path, line, "malformed value"}
		}
		values[i] = int(v)
	}

	if len(values) < 2 {
		return nil, "", false, &ParseError{r.path, line, "line contains no values"}
	}
	if values[len(values)-1] != 0 {
		return nil, "", false, &ParseError{r.path, line, "line does not end with 0"}
	}

	return values[:len(values)-1], line, true, nil
}

// bufferedAttack is an attack awaiting subsumption filtering.
type bufferedAttack struct {
	attacked int // 1-based
	members  []int
	subsumed bool
}

func parseInstanceFile(path string) (*setaf.Instance, error) {
	r, err := openLineReader(path)
	if err != nil {
		return nil, err
	}
	defer r.close()

	preamble, _, ok, err := r.nextValues()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ParseError{path, "", "instance contains no preamble"}
	}
	if len(preamble) != 2 {
		return nil, &ParseError{path, "", "the preamble is malformed"}
	}
	numArguments, numAttacks := preamble[0], preamble[1]

	buffer := make([]bufferedAttack, 0, numAttacks)
	for {
		values, line, ok, err := r.nextValues()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		if len(buffer) == numAttacks {
			return nil, &ParseError{path, line, "more attacks than specified in the preamble"}
		}
		if len(values) < 2 {
			return nil, &ParseError{path, line, "attack has no attackers"}
		}
		for _, id := range values {
			if id == 0 || id > numArguments {
				return nil, &ParseError{path, line, fmt.Sprintf("argument %d does not exist", id)}
			}
		}

		buffer = append(buffer, bufferedAttack{attacked: values[0], members: values[1:]})
	}
	if len(buffer) != numAttacks {
		return nil, &ParseError{path, "", "fewer attacks than specified in the preamble"}
	}

	// Sorting by attacker count first guarantees an attack can never be a
	// proper subset of an earlier one, so a single trie pass suffices.
	sort.Slice(buffer, func(i, j int) bool {
		return len(buffer[i].members) < len(buffer[j].members)
	})

	trie := setaf.NewIDTrie()
	subsumed := 0
	for i := range buffer {
		if signals.Received() {
			return nil, signals.ErrInterrupted
		}

		sort.Ints(buffer[i].members)
		if trie.ContainsSubsetOf(buffer[i].attacked, buffer[i].members) {
			buffer[i].subsumed = true
			subsumed++
		} else {
			trie.Insert(buffer[i].attacked, buffer[i].members)
		}
	}

	inst := setaf.NewInstance(numArguments, numAttacks-subsumed)

	// occurrence[id] holds the 1-based serial of the last attack that added
	// the argument, so duplicated attackers within a line are added once.
	occurrence := make([]int, numArguments)
	count := 0
	for _, a := range buffer {
		if a.subsumed {
			continue
		}

		attack := inst.Attack(count)
		attack.SetAttacked(inst.Argument(a.attacked-1), setaf.Out)

		for _, m := range a.members {
			if m == a.attacked {
				attack.MarkSelfAttack()
				continue
			}
			id := m - 1
			if occurrence[id] != count+1 {
				occurrence[id] = count + 1
				arg := inst.Argument(id)
				attack.AddArgument(arg, setaf.Out)

				// Seed for the out-degree based heuristics.
				arg.SetHeuristicsValue(arg.HeuristicsValue() + 1)
			}
		}
		count++
	}

	return inst, nil
}

// applyDescriptions renames arguments. A name used by several arguments is
// recorded as ambiguous (nil) in names.
func applyDescriptions(path string, inst *setaf.Instance, names map[string]*setaf.Argument) error {
	r, err := openLineReader(path)
	if err != nil {
		return err
	}
	defer r.close()

	for {
		line, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		idPart, name, found := strings.Cut(line, " ")
		if !found || name == "" {
			return &ParseError{path, line, "line does not contain a name"}
		}
		id, err := strconv.ParseUint(idPart, 10, 32)
		if err != nil {
			return &ParseError{path, line, "line does not contain a valid argument id"}
		}
		if id == 0 || int(id) > inst.NumArguments() {
			return &ParseError{path, line, fmt.Sprintf("argument %d does not exist", id)}
		}

		arg := inst.Argument(int(id) - 1)
		if _, ok := names[name]; ok {
			names[name] = nil
		} else {
			names[name] = arg
		}
		arg.SetName(name)
	}
}

// applyRequired records forced assignments. A line is either "[-]<id>" or
// "s [-]<name>"; a leading - forces Out.
func applyRequired(path string, inst *setaf.Instance, names map[string]*setaf.Argument) error {
	r, err := openLineReader(path)
	if err != nil {
		return err
	}
	defer r.close()

	for {
		line, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		arg, sign, perr := parseRequiredLine(path, line, inst, names)
		if perr != nil {
			return perr
		}
		inst.AddRequiredArgument(arg, sign)
	}
}

func parseRequiredLine(path, line string, inst *setaf.Instance, names map[string]*setaf.Argument) (*setaf.Argument, setaf.Sign, error) {
	if rest, ok := strings.CutPrefix(line, "s "); ok {
		sign := setaf.In
		name := rest
		if strings.HasPrefix(rest, "-") {
			sign = setaf.Out
			name = rest[1:]
		}

		arg, known := names[name]
		if !known {
			return nil, 0, &ParseError{path, line, fmt.Sprintf("argument %q does not exist", name)}
		}
		if arg == nil {
			return nil, 0, &ParseError{path, line, fmt.Sprintf("argument %q is not unique", name)}
		}
		return arg, sign, nil
	}

	if strings.Contains(line, " ") {
		return nil, 0, &ParseError{path, line, "malformed line"}
	}

	sign := setaf.In
	idPart := line
	if strings.HasPrefix(line, "-") {
		sign = setaf.Out
		idPart = line[1:]
	}
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil {
		return nil, 0, &ParseError{path, line, "malformed argument reference"}
	}
	if id == 0 || int(id) > inst.NumArguments() {
		return nil, 0, &ParseError{path, line, fmt.Sprintf("argument %d does not exist", id)}
	}
	return inst.Argument(int(id) - 1), sign, nil
}
