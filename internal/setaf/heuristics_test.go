package setaf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeuristics(t *testing.T) {
	tests := []struct {
		input   string
		want    Heuristics
		wantErr bool
	}{
		{input: "None", want: Heuristics{Type: HeuristicNone}},
		{input: "MaxOutDegree", want: Heuristics{Type: HeuristicMaxOutDegree}},
		{input: "MinInDegree", want: Heuristics{Type: HeuristicMinInDegree}},
		{input: "PathLength3", want: Heuristics{Type: HeuristicPathLength, PathLength: 3}},
		{input: "PathLengthModified2", want: Heuristics{Type: HeuristicPathLengthModified, PathLength: 2}},
		{input: "PathLength", wantErr: true},
		{input: "PathLengthModified", wantErr: true},
		{input: "PathLength-1", wantErr: true},
		{input: "maxoutdegree", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseHeuristics(tt.input)
		if tt.wantErr {
			assert.Errorf(t, err, "ParseHeuristics(%q)", tt.input)
			continue
		}
		require.NoErrorf(t, err, "ParseHeuristics(%q)", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func applyOrder(t *testing.T, inst *Instance, h Heuristics) []string {
	t.Helper()
	sorted, guessOrder := h.Apply(inst, 0)

	require.Len(t, guessOrder, len(sorted))
	for i, sign := range guessOrder {
		assert.Equal(t, In, sign)
		assert.Equal(t, i, sorted[i].Position())
	}

	names := make([]string, len(sorted))
	for i, a := range sorted {
		names[i] = a.Name()
	}
	return names
}

func TestHeuristics_MaxOutDegree(t *testing.T) {
	// 1 attacks twice, 2 once, 3 never.
	inst := newTestInstance(3, []int{2, 1}, []int{3, 1, 2})

	got := applyOrder(t, inst, Heuristics{Type: HeuristicMaxOutDegree})

	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestHeuristics_MinInDegree(t *testing.T) {
	// 3 is attacked twice, 2 once, 1 never.
	inst := newTestInstance(3, []int{3, 1}, []int{3, 2}, []int{2, 1})

	got := applyOrder(t, inst, Heuristics{Type: HeuristicMinInDegree})

	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestHeuristics_DropsAssignedArguments(t *testing.T) {
	inst := newTestInstance(3, []int{2, 1})
	s := NewSolver(inst, DefaultOptions)
	require.Nil(t, s.setAndPropagate(inst.Argument(2), In, nil))

	got := applyOrder(t, inst, Heuristics{Type: HeuristicNone})

	assert.Equal(t, []string{"1", "2"}, got)
}

func TestHeuristics_PathLengthValues(t *testing.T) {
	// Chain 1 -> 2 -> 3: one path of length 2 starts at 1.
	inst := newTestInstance(3, []int{2, 1}, []int{3, 2})
	args := inst.ArgumentsCopy()

	values := computePathLength(args, 2, attackersByTarget(inst))

	assert.InDelta(t, 0.75, values[0], 1e-9)
	assert.InDelta(t, 0.5, values[1], 1e-9)
	assert.InDelta(t, 0.0, values[2], 1e-9)
}

func TestHeuristics_PathLengthModifiedValues(t *testing.T) {
	inst := newTestInstance(3, []int{2, 1}, []int{3, 2})
	args := inst.ArgumentsCopy()

	values := computePathLength(args, 2, attackersByTarget(inst))
	addModifiedPathLength(args, 2, values)

	assert.InDelta(t, 0.75, values[0], 1e-9)
	assert.InDelta(t, 0.0, values[1], 1e-9)
	assert.InDelta(t, -0.25, values[2], 1e-9)
}

func TestHeuristics_PathLengthOrder(t *testing.T) {
	inst := newTestInstance(3, []int{2, 1}, []int{3, 2})

	got := applyOrder(t, inst, Heuristics{Type: HeuristicPathLength, PathLength: 2})

	assert.Equal(t, []string{"1", "2", "3"}, got)
}
