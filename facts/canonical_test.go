package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factmem/extract"
)

func TestDecomposeName(t *testing.T) {
	got := decompose(extract.Candidate{Type: extract.TypeName, Subtype: "self", Value: "John", Confidence: 0.95})
	require.Len(t, got, 1)
	assert.Equal(t, "person", got[0].entityType)
	assert.Equal(t, "self", got[0].subtype)
	assert.Equal(t, "John", got[0].name)
	assert.True(t, got[0].singleton)
}

func TestDecomposeMultiPetPayload(t *testing.T) {
	got := decompose(extract.Candidate{
		Type:    extract.TypePet,
		Subtype: "cat",
		Value:   "Holly, Benny",
		Pets:    &extract.PetPayload{Count: 2, Species: "cat", Names: []string{"Holly", "Benny"}},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "Holly", got[0].name)
	assert.Equal(t, "Benny", got[1].name)
	for _, rf := range got {
		assert.Equal(t, "pet", rf.entityType)
		assert.Equal(t, "cat", rf.subtype)
		assert.Equal(t, "cat", rf.attributes["species"])
		require.Len(t, rf.relations, 1)
		assert.Equal(t, "owned_by", rf.relations[0].relationshipType)
		assert.False(t, rf.singleton)
	}
}

func TestDecomposePetWithoutPayload(t *testing.T) {
	assert.Empty(t, decompose(extract.Candidate{Type: extract.TypePet, Value: "something"}))
}

func TestDecomposeRelationship(t *testing.T) {
	got := decompose(extract.Candidate{Type: extract.TypeRelationship, Subtype: "sister", Value: "Alice"})
	require.Len(t, got, 1)
	assert.Equal(t, "person", got[0].entityType)
	assert.Equal(t, "sister", got[0].subtype)
	assert.Equal(t, "sister", got[0].attributes["role"])
	require.Len(t, got[0].relations, 1)
	assert.Equal(t, "family_of", got[0].relations[0].relationshipType)
}

func TestDecomposePreferenceCategory(t *testing.T) {
	got := decompose(extract.Candidate{Type: extract.TypePreference, Subtype: "favorite", Value: "blue", Detail: "color"})
	require.Len(t, got, 1)
	assert.Equal(t, "color", got[0].attributes["category"])
}

func TestDecomposeSingletonSubtypes(t *testing.T) {
	residence := decompose(extract.Candidate{Type: extract.TypeLocation, Subtype: "residence", Value: "Boston"})
	require.Len(t, residence, 1)
	assert.True(t, residence[0].singleton)

	origin := decompose(extract.Candidate{Type: extract.TypeLocation, Subtype: "origin", Value: "Ireland"})
	require.Len(t, origin, 1)
	assert.False(t, origin[0].singleton)

	birthday := decompose(extract.Candidate{Type: extract.TypeDate, Subtype: "birthday", Value: "March 3rd"})
	require.Len(t, birthday, 1)
	assert.True(t, birthday[0].singleton)
}

func TestDecomposeUnknownOrEmpty(t *testing.T) {
	assert.Empty(t, decompose(extract.Candidate{Type: "bogus", Value: "x"}))
	assert.Empty(t, decompose(extract.Candidate{Type: extract.TypeName, Value: "   "}))
}
