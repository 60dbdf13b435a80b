package setaf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstance_ClauseIDsAreUnique(t *testing.T) {
	inst := NewInstance(2, 3)

	c1 := inst.NewLearnedClause(0)
	c2 := inst.NewLearnedClause(0)

	assert.Equal(t, 3, c1.ID())
	assert.Equal(t, 4, c2.ID())
}

func TestInstance_ForgetUnreferencedClause(t *testing.T) {
	inst := NewInstance(2, 0)
	inst.NewLearnedClause(0)
	require.Equal(t, 1, inst.NumLearnedClauses())

	inst.ForgetClauses(1, nil, false)

	assert.Equal(t, 0, inst.NumLearnedClauses())
	assert.Len(t, inst.available, 1)
	assert.Empty(t, inst.forgotten)
}

func TestInstance_ForgetReferencedClause(t *testing.T) {
	inst := NewInstance(2, 0)
	c := inst.NewLearnedClause(2)
	c.AddArgument(inst.Argument(0), In)
	c.AddArgument(inst.Argument(1), In)
	require.Equal(t, 2, c.usage) // two watch slots

	inst.ForgetClauses(1, nil, false)

	require.True(t, c.isForgotten())
	assert.Len(t, inst.forgotten, 1)
	assert.Empty(t, inst.available)

	// Dropping the last references recycles the clause.
	if inst.Argument(0).removeWatchedIn(c) {
		inst.recycleClause(c)
	}
	if inst.Argument(1).removeWatchedIn(c) {
		inst.recycleClause(c)
	}
	assert.Empty(t, inst.forgotten)
	assert.Len(t, inst.available, 1)
	assert.Equal(t, 0, c.usage)
}

func TestInstance_RecycledClauseIsReused(t *testing.T) {
	inst := NewInstance(2, 0)
	c := inst.NewLearnedClause(2)
	c.AddArgument(inst.Argument(0), In)
	inst.ForgetClauses(1, nil, false)
	inst.Argument(0).removeWatchedIn(c)
	inst.recycleClause(c)

	fresh := inst.NewLearnedClause(0)

	assert.Same(t, c, fresh)
	assert.Equal(t, Learned, fresh.Type())
	assert.Equal(t, 0, fresh.Len())
	assert.Equal(t, 1, fresh.ID())
}

func TestInstance_ForgetKeepsFIFOOrder(t *testing.T) {
	inst := NewInstance(4, 0)
	first := inst.NewLearnedClause(0)
	second := inst.NewLearnedClause(0)
	third := inst.NewLearnedClause(0)

	inst.ForgetClauses(2, nil, false)

	require.Equal(t, 1, inst.NumLearnedClauses())
	assert.True(t, first.isForgotten() || first.isNotUsed())
	assert.True(t, second.isForgotten() || second.isNotUsed())
	assert.Equal(t, Learned, third.Type())
}

func TestInstance_ReasonReferenceKeepsClauseAlive(t *testing.T) {
	inst := NewInstance(2, 0)
	c := inst.NewLearnedClause(2)
	c.AddArgument(inst.Argument(0), In)

	arg := inst.Argument(1)
	arg.setValue(In, 0, c, inst)
	require.Equal(t, 2, c.usage) // one watch slot, one reason

	inst.ForgetClauses(1, nil, false)
	require.True(t, c.isForgotten())

	inst.Argument(0).removeWatchedIn(c)
	require.Equal(t, 1, c.usage)
	assert.Len(t, inst.forgotten, 1)

	// Overwriting the reason releases the clause.
	arg.setValue(Out, 1, nil, inst)
	assert.Equal(t, 0, c.usage)
	assert.Empty(t, inst.forgotten)
	assert.Len(t, inst.available, 1)
}
