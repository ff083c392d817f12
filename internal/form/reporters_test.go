package form

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facility-form-backend/internal/directory"
)

var testAgents = []directory.Agent{
	{Name: "Alice", Key: "alice-key"},
	{Name: "Bob", Key: "bob-key"},
	{Name: "Carol", Key: "carol-key"},
}

// edit types value into row i and then leaves the field.
func edit(t *testing.T, r *Reporters, i int, value string) {
	t.Helper()
	require.NoError(t, r.Resolve(i, value, testAgents))
	require.NoError(t, r.Rebalance(i))
}

func keys(r Reporters) []string {
	out := make([]string, len(r))
	for i, rep := range r {
		out[i] = rep.Key
	}
	return out
}

func TestNewReporters(t *testing.T) {
	r := NewReporters()
	require.Len(t, r, 1)
	assert.Equal(t, "", r[0].Key)
	assert.Empty(t, r[0].Properties)
	assert.NoError(t, r.CheckInvariant())
}

func TestRebalance(t *testing.T) {
	t.Run("resolving the last row appends one placeholder", func(t *testing.T) {
		r := NewReporters()
		edit(t, &r, 0, "Alice")
		assert.Equal(t, []string{"alice-key", ""}, keys(r))
		assert.NoError(t, r.CheckInvariant())
	})

	t.Run("clearing the last row does not append", func(t *testing.T) {
		r := NewReporters()
		edit(t, &r, 0, "Alice")
		edit(t, &r, 1, "nobody")
		assert.Equal(t, []string{"alice-key", ""}, keys(r))

		edit(t, &r, 1, "")
		assert.Equal(t, []string{"alice-key", ""}, keys(r))
	})

	t.Run("clearing an interior row removes it", func(t *testing.T) {
		r := NewReporters()
		edit(t, &r, 0, "Alice")
		edit(t, &r, 1, "Bob")
		edit(t, &r, 2, "Carol")
		require.Equal(t, []string{"alice-key", "bob-key", "carol-key", ""}, keys(r))

		edit(t, &r, 1, "")
		assert.Equal(t, []string{"alice-key", "carol-key", ""}, keys(r))
		assert.NoError(t, r.CheckInvariant())
	})

	t.Run("re-resolving an interior row keeps it in place", func(t *testing.T) {
		r := NewReporters()
		edit(t, &r, 0, "Alice")
		edit(t, &r, 1, "Bob")
		edit(t, &r, 0, "carol-key")
		assert.Equal(t, []string{"carol-key", "bob-key", ""}, keys(r))
	})

	t.Run("blurring a keyed interior row is a no-op", func(t *testing.T) {
		r := NewReporters()
		edit(t, &r, 0, "Alice")
		edit(t, &r, 1, "Bob")
		before := r.Clone()
		require.NoError(t, r.Rebalance(0))
		assert.Equal(t, before, r)
	})

	t.Run("index out of range", func(t *testing.T) {
		r := NewReporters()
		assert.ErrorIs(t, r.Rebalance(1), ErrReporterIndex)
		assert.ErrorIs(t, r.Rebalance(-1), ErrReporterIndex)
		assert.ErrorIs(t, r.Resolve(3, "Alice", testAgents), ErrReporterIndex)
		assert.ErrorIs(t, r.SetProperties(2, nil), ErrReporterIndex)
	})
}

func TestResolve_ClearsPreviousMatch(t *testing.T) {
	r := NewReporters()
	require.NoError(t, r.Resolve(0, "Alice", testAgents))
	assert.Equal(t, "alice-key", r[0].Key)

	require.NoError(t, r.Resolve(0, "Alic", testAgents))
	assert.Equal(t, "", r[0].Key)
	assert.Equal(t, "Alic", r[0].Input)

	require.NoError(t, r.Resolve(0, "alice", testAgents))
	assert.Equal(t, "", r[0].Key, "matching is case-sensitive")

	require.NoError(t, r.Resolve(0, "Alice", nil))
	assert.Equal(t, "", r[0].Key, "nothing resolves before the directory loads")
}

func TestSetProperties(t *testing.T) {
	r := NewReporters()
	require.NoError(t, r.SetProperties(0, []string{"plants", "sales", "plants"}))
	assert.Equal(t, []string{"plants", "sales"}, r[0].Properties)

	require.NoError(t, r.SetProperties(0, []string{"reports"}))
	assert.Equal(t, []string{"reports"}, r[0].Properties, "selection replaces wholesale")

	require.NoError(t, r.SetProperties(0, nil))
	assert.Empty(t, r[0].Properties)

	assert.ErrorIs(t, r.SetProperties(0, []string{"weather"}), ErrUnknownProperty)
	assert.Empty(t, r[0].Properties, "rejected selection leaves the row unchanged")
}

func TestCheckInvariant(t *testing.T) {
	assert.ErrorIs(t, Reporters{}.CheckInvariant(), ErrInvariantViolated)
	assert.ErrorIs(t, Reporters{{Key: "a"}}.CheckInvariant(), ErrInvariantViolated)
	assert.ErrorIs(t, Reporters{{}, {}}.CheckInvariant(), ErrInvariantViolated)
	assert.NoError(t, Reporters{{Key: "a"}, {}}.CheckInvariant())
}

// TestRebalance_RandomEdits drives the list with random edit-and-blur
// sequences and checks the settled shape after every step.
func TestRebalance_RandomEdits(t *testing.T) {
	values := []string{"Alice", "Bob", "carol-key", "", "unknown", "alice"}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		r := NewReporters()
		for step := 0; step < 40; step++ {
			i := rng.Intn(len(r))
			value := values[rng.Intn(len(values))]
			lenBefore := len(r)
			wasLast := i == lenBefore-1

			require.NoError(t, r.Resolve(i, value, testAgents))
			resolved := r[i].Key != ""
			require.NoError(t, r.Rebalance(i))

			require.NoError(t, r.CheckInvariant(), "run %d step %d", run, step)
			switch {
			case resolved && wasLast:
				assert.Len(t, r, lenBefore+1)
			case !resolved && !wasLast:
				assert.Len(t, r, lenBefore-1)
			default:
				assert.Len(t, r, lenBefore)
			}
		}
	}
}
