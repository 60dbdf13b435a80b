package simplefmt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/stabl-solver/stabl/internal/setaf"
)

// attackStrings renders every attack as "target<-a,b" with sorted attacker
// names, so instances can be compared independently of attack order.
func attackStrings(inst *setaf.Instance) []string {
	out := make([]string, 0, inst.NumAttacks())
	for i := 0; i < inst.NumAttacks(); i++ {
		attack := inst.Attack(i)
		attackers := []string{}
		for j := 1; j < attack.Len(); j++ {
			arg, _ := attack.Member(j)
			attackers = append(attackers, arg.Name())
		}
		if attack.Type() == setaf.SelfAttack {
			attackers = append(attackers, attack.AttackedArgument().Name())
		}
		sort.Strings(attackers)
		out = append(out, fmt.Sprintf("%s<-%s", attack.AttackedArgument().Name(), strings.Join(attackers, ",")))
	}
	sort.Strings(out)
	return out
}

func TestParse_Instance(t *testing.T) {
	inst, err := Parse("testdata/simple.af", "", "")
	if err != nil {
		t.Fatalf("Parse(): want no error, got %s", err)
	}

	if got := inst.NumArguments(); got != 3 {
		t.Errorf("NumArguments(): want 3, got %d", got)
	}
	if got := inst.NumAttacks(); got != 3 {
		t.Errorf("NumAttacks(): want 3, got %d", got)
	}

	want := []string{"1<-2", "2<-1", "3<-1,2"}
	if diff := cmp.Diff(want, attackStrings(inst)); diff != "" {
		t.Errorf("attacks mismatch (-want, +got):\n%s", diff)
	}

	// The out-degree seed: 1 and 2 each occur in two attacks as attacker.
	wantValues := []float64{2, 2, 0}
	for i, wantValue := range wantValues {
		if got := inst.Argument(i).HeuristicsValue(); got != wantValue {
			t.Errorf("Argument(%d).HeuristicsValue(): want %v, got %v", i, wantValue, got)
		}
	}
}

func TestParse_SubsumedAttackIsDropped(t *testing.T) {
	inst, err := Parse("testdata/subsumed.af", "", "")
	if err != nil {
		t.Fatalf("Parse(): want no error, got %s", err)
	}

	want := []string{"3<-1"}
	if diff := cmp.Diff(want, attackStrings(inst)); diff != "" {
		t.Errorf("attacks mismatch (-want, +got):\n%s", diff)
	}
}

func TestParse_DescriptionAndRequired(t *testing.T) {
	inst, err := Parse("testdata/simple.af", "testdata/simple.names", "testdata/simple.required")
	if err != nil {
		t.Fatalf("Parse(): want no error, got %s", err)
	}

	wantNames := []string{"alpha", "beta", "gamma"}
	for i, want := range wantNames {
		if got := inst.Argument(i).Name(); got != want {
			t.Errorf("Argument(%d).Name(): want %q, got %q", i, want, got)
		}
	}

	required := inst.RequiredArguments()
	if len(required) != 2 {
		t.Fatalf("RequiredArguments(): want 2 entries, got %d", len(required))
	}
	if required[0].Arg.ID() != 0 || required[0].Sign != setaf.Out {
		t.Errorf("required[0]: want argument 0 out, got %d %v", required[0].Arg.ID(), required[0].Sign)
	}
	if required[1].Arg.ID() != 1 || required[1].Sign != setaf.In {
		t.Errorf("required[1]: want argument 1 in, got %d %v", required[1].Arg.ID(), required[1].Sign)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse_InstanceErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"malformed preamble", "1 2 3 0\n"},
		{"missing terminator", "2 1 0\n1 2\n"},
		{"non numeric", "2 1 0\n1 x 0\n"},
		{"attack without attackers", "2 1 0\n1 0\n"},
		{"attacked id out of range", "2 1 0\n3 1 0\n"},
		{"attacker id out of range", "2 1 0\n1 3 0\n"},
		{"attacked id zero", "2 1 0\n0 1 0\n"},
		{"too many attacks", "2 1 0\n1 2 0\n2 1 0\n"},
		{"too few attacks", "2 2 0\n1 2 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.af", tt.content)

			_, err := Parse(path, "", "")

			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse(): want ParseError, got %v", err)
			}
			if perr.File != path {
				t.Errorf("ParseError.File: want %q, got %q", path, perr.File)
			}
		})
	}
}

func TestParse_DescriptionErrors(t *testing.T) {
	instance := writeFile(t, "ok.af", "2 1 0\n1 2 0\n")

	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "1\n"},
		{"bad id", "x name\n"},
		{"id out of range", "3 name\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := writeFile(t, "bad.names", tt.content)

			_, err := Parse(instance, desc, "")

			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse(): want ParseError, got %v", err)
			}
		})
	}
}

func TestParse_RequiredErrors(t *testing.T) {
	instance := writeFile(t, "ok.af", "2 1 0\n1 2 0\n")
	ambiguous := writeFile(t, "dup.names", "1 twin\n2 twin\n")

	tests := []struct {
		name        string
		description string
		content     string
	}{
		{"unknown id", "", "3\n"},
		{"zero id", "", "0\n"},
		{"bad reference", "", "x\n"},
		{"malformed line", "", "q 1\n"},
		{"unknown name", ambiguous, "s stranger\n"},
		{"ambiguous name", ambiguous, "s twin\n"},
		{"negated ambiguous name", ambiguous, "s -twin\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			required := writeFile(t, "bad.required", tt.content)

			_, err := Parse(instance, tt.description, required)

			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse(): want ParseError, got %v", err)
			}
		})
	}
}

func TestParse_CommentsAndBlankLines(t *testing.T) {
	path := writeFile(t, "ok.af", "# comment\n\n2 1 0\r\n# another\n1 2 0\r\n\n")

	inst, err := Parse(path, "", "")
	if err != nil {
		t.Fatalf("Parse(): want no error, got %s", err)
	}
	if got := inst.NumAttacks(); got != 1 {
		t.Errorf("NumAttacks(): want 1, got %d", got)
	}
}

func TestParse_DuplicateAttackerAddedOnce(t *testing.T) {
	path := writeFile(t, "ok.af", "2 1 0\n1 2 2 0\n")

	inst, err := Parse(path, "", "")
	if err != nil {
		t.Fatalf("Parse(): want no error, got %s", err)
	}
	if got := inst.Attack(0).Len(); got != 2 {
		t.Errorf("Attack(0).Len(): want 2, got %d", got)
	}
}

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "absent.af"), "", "")
	if err == nil {
		t.Errorf("Parse(): want error, got none")
	}
}
