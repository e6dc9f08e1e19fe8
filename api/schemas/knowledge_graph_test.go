package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPair(t *testing.T) {
	assert.Equal(t, Pair{A: 3, B: 9}, NewPair(9, 3))
	assert.Equal(t, NewPair(3, 9), NewPair(9, 3))
	assert.Equal(t, Pair{A: 4, B: 4}, NewPair(4, 4))
}

func TestEdge_PairAndString(t *testing.T) {
	e := Edge{Source: 12, Target: 5, Type: RelationshipBuildsOn, Weight: 0.75}
	assert.Equal(t, Pair{A: 5, B: 12}, e.Pair())
	assert.Equal(t, "12 -[BUILDS_ON 0.75]-> 5", e.String())
}

func TestRelationshipType_Valid(t *testing.T) {
	for _, rt := range RelationshipTypes {
		assert.True(t, rt.Valid(), rt)
	}
	assert.False(t, RelationshipType("related_to").Valid())
	assert.False(t, RelationshipType("").Valid())
}
