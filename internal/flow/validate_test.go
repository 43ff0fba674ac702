package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diamond builds the classic A -> (B, C) -> D shape used across the tests.
func diamond() *Definition {
	return &Definition{
		ID: "diamond",
		Nodes: []*Node{
			{ID: "A", ExecutorRef: "static", Outputs: []Output{{ArtifactID: "seed", Path: "seed.txt"}}},
			{ID: "B", ExecutorRef: "static", Inputs: []Input{{ArtifactID: "seed"}}, Outputs: []Output{{ArtifactID: "left", Path: "left.txt"}}},
			{ID: "C", ExecutorRef: "static", Inputs: []Input{{ArtifactID: "seed"}}, Outputs: []Output{{ArtifactID: "right", Path: "right.txt"}}},
			{ID: "D", ExecutorRef: "concat", Inputs: []Input{{ArtifactID: "left"}, {ArtifactID: "right"}}, Outputs: []Output{{ArtifactID: "merged", Path: "merged.txt"}}},
		},
	}
}

func TestValidate_DerivesDiamondEdges(t *testing.T) {
	t.Parallel()

	d, err := Validate(diamond())
	require.NoError(t, err)
	require.True(t, d.Validated())

	assert.ElementsMatch(t, []Edge{
		{From: "A", To: "B", ArtifactID: "seed"},
		{From: "A", To: "C", ArtifactID: "seed"},
		{From: "B", To: "D", ArtifactID: "left"},
		{From: "C", To: "D", ArtifactID: "right"},
	}, d.Edges())

	producer, ok := d.Producer("merged")
	require.True(t, ok)
	assert.Equal(t, "D", producer)
	assert.ElementsMatch(t, []string{"B", "C"}, d.Dependents("A"))
}

func TestValidate_TopologicalOrder(t *testing.T) {
	t.Parallel()

	d, err := Validate(diamond())
	require.NoError(t, err)

	pos := make(map[string]int)
	for i, id := range d.Order() {
		pos[id] = i
	}
	require.Len(t, pos, 4)
	for _, e := range d.Edges() {
		assert.Less(t, pos[e.From], pos[e.To], "edge %s->%s out of order", e.From, e.To)
	}
}

func TestValidate_RejectsCycle(t *testing.T) {
	t.Parallel()

	d := &Definition{
		ID: "cyclic",
		Nodes: []*Node{
			{ID: "A", ExecutorRef: "x", Inputs: []Input{{ArtifactID: "c-out"}}, Outputs: []Output{{ArtifactID: "a-out"}}},
			{ID: "B", ExecutorRef: "x", Inputs: []Input{{ArtifactID: "a-out"}}, Outputs: []Output{{ArtifactID: "b-out"}}},
			{ID: "C", ExecutorRef: "x", Inputs: []Input{{ArtifactID: "b-out"}}, Outputs: []Output{{ArtifactID: "c-out"}}},
		},
	}
	_, err := Validate(d)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, cycleErr.Remaining)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.False(t, d.Validated())
}

func TestValidate_RejectsDuplicateWriter(t *testing.T) {
	t.Parallel()

	t.Run("same artifact id", func(t *testing.T) {
		t.Parallel()
		d := &Definition{
			ID: "dup-artifact",
			Nodes: []*Node{
				{ID: "A", ExecutorRef: "x", Outputs: []Output{{ArtifactID: "report", Path: "a.txt"}}},
				{ID: "B", ExecutorRef: "x", Outputs: []Output{{ArtifactID: "report", Path: "b.txt"}}},
			},
		}
		_, err := Validate(d)
		var dupErr *DuplicateWriterError
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, "report", dupErr.ArtifactID)
		assert.Equal(t, "A", dupErr.FirstNode)
		assert.Equal(t, "B", dupErr.SecondNode)
	})

	t.Run("same sandbox path", func(t *testing.T) {
		t.Parallel()
		d := &Definition{
			ID: "dup-path",
			Nodes: []*Node{
				{ID: "A", ExecutorRef: "x", Outputs: []Output{{ArtifactID: "one", Path: "out.txt"}}},
				{ID: "B", ExecutorRef: "x", Outputs: []Output{{ArtifactID: "two", Path: "out.txt"}}},
			},
		}
		_, err := Validate(d)
		var dupErr *DuplicateWriterError
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, "out.txt", dupErr.Path)
	})
}

func TestValidate_RejectsDanglingReference(t *testing.T) {
	t.Parallel()

	d := &Definition{
		ID: "dangling",
		Nodes: []*Node{
			{ID: "A", ExecutorRef: "x", Inputs: []Input{{ArtifactID: "nowhere"}}},
		},
	}
	_, err := Validate(d)
	var refErr *DanglingReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "A", refErr.NodeID)
	assert.Equal(t, "nowhere", refErr.ArtifactID)
}

func TestValidate_RejectsMalformedDefinitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		def  *Definition
	}{
		{"empty flow id", &Definition{Nodes: []*Node{{ID: "A", ExecutorRef: "x"}}}},
		{"empty node id", &Definition{ID: "f", Nodes: []*Node{{ExecutorRef: "x"}}}},
		{"empty executor ref", &Definition{ID: "f", Nodes: []*Node{{ID: "A"}}}},
		{"duplicate node id", &Definition{ID: "f", Nodes: []*Node{{ID: "A", ExecutorRef: "x"}, {ID: "A", ExecutorRef: "x"}}}},
		{"empty output artifact id", &Definition{ID: "f", Nodes: []*Node{{ID: "A", ExecutorRef: "x", Outputs: []Output{{Path: "p"}}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Validate(tc.def)
			var defErr *DefinitionError
			require.ErrorAs(t, err, &defErr)
		})
	}
}

func TestValidate_NormalizesOnErrorDefaults(t *testing.T) {
	t.Parallel()

	d := &Definition{
		ID: "defaults",
		Nodes: []*Node{
			{ID: "A", ExecutorRef: "x"},
			{ID: "B", ExecutorRef: "x", OnError: OnError{Strategy: StrategyRetry, RetryCount: 3}},
		},
	}
	_, err := Validate(d)
	require.NoError(t, err)

	assert.Equal(t, StrategyTerminate, d.Node("A").OnError.Strategy)
	assert.Equal(t, StrategyTerminate, d.Node("B").OnError.OnExhausted)
}

func TestCatalog(t *testing.T) {
	t.Parallel()

	c := NewCatalog()
	require.NoError(t, c.Add(diamond()))

	t.Run("rejects duplicate id", func(t *testing.T) {
		err := c.Add(diamond())
		require.Error(t, err)
	})

	t.Run("rejects invalid definition", func(t *testing.T) {
		err := c.Add(&Definition{ID: "broken", Nodes: []*Node{{ID: "A"}}})
		require.Error(t, err)
	})

	t.Run("get and ids", func(t *testing.T) {
		d, ok := c.Get("diamond")
		require.True(t, ok)
		assert.True(t, d.Validated())
		assert.Equal(t, []string{"diamond"}, c.IDs())
	})
}
