package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterSet_AddRejectsOutOfOrderIDs(t *testing.T) {
	set := NewClusterSet()
	require.NoError(t, set.Add(&Cluster{ID: 1}))
	require.NoError(t, set.Add(&Cluster{ID: 3}))

	assert.Error(t, set.Add(&Cluster{ID: 2}))
	assert.Error(t, set.Add(&Cluster{ID: 3}))
	assert.Error(t, set.Add(&Cluster{ID: 0}))
	assert.Equal(t, []int{1, 3}, set.IDs())

	c, ok := set.Get(3)
	require.True(t, ok)
	assert.Equal(t, 3, c.ID)
	_, ok = set.Get(2)
	assert.False(t, ok)
}

func TestClusterSet_NilIsEmpty(t *testing.T) {
	var set *ClusterSet
	assert.Zero(t, set.Len())
	assert.Empty(t, set.IDs())
	assert.Zero(t, set.TotalCells())

	b, err := json.Marshal(NewClusterSet())
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(b))
}

func TestClusterSet_MarshalJSONOrdersByID(t *testing.T) {
	set := setFromCells(t, []Cell{{0, 0}}, []Cell{{1, 1}, {1, 2}})

	b, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Len(t, decoded, 2)
	assert.EqualValues(t, 1, decoded[0]["id"])
	assert.EqualValues(t, 2, decoded[1]["id"])
	assert.NotContains(t, decoded[0], "Cells")
}
