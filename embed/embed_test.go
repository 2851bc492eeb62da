package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder()
	a, err := e.EmbedText(context.Background(), "my cat is named Holly")
	require.NoError(t, err)
	b, err := e.EmbedText(context.Background(), "my cat is named Holly")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, e.Dimension())
}

func TestCosineSimilarity(t *testing.T) {
	e := NewHashEmbedder()
	ctx := context.Background()
	a, _ := e.EmbedText(ctx, "I have two cats")
	b, _ := e.EmbedText(ctx, "I have two cats")
	c, _ := e.EmbedText(ctx, "completely unrelated words about weather")

	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-6)
	assert.Less(t, CosineSimilarity(a, c), 1.0)
	assert.Zero(t, CosineSimilarity(a, a[:10]))
	assert.Zero(t, CosineSimilarity(nil, nil))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := NewHashEmbedder()
	v, _ := e.EmbedText(context.Background(), "round trip")
	got := Decode(Encode(v))
	assert.Equal(t, v, got)

	assert.Nil(t, Encode(nil))
	assert.Nil(t, Decode(nil))
	assert.Nil(t, Decode([]byte{1, 2, 3}))
}
