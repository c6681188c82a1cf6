package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvertedPostings(t *testing.T) {
	ix := NewInverted()
	ix.Add(2, "docker compose docker")
	ix.Add(0, "docker install guide")
	ix.Add(1, "python notebook")

	list := ix.Postings("docker")
	require.Len(t, list, 2)
	assert.Equal(t, 0, list[0].Doc)
	assert.Equal(t, 2, list[1].Doc)
	assert.Equal(t, 2, list[1].Frequency)
	assert.Equal(t, []int{0, 2}, list[1].Positions)

	assert.Nil(t, ix.Postings("kubernetes"))
	assert.Equal(t, 3, ix.DocCount())
	assert.Equal(t, 3, ix.DocLength(2))
	assert.InDelta(t, 8.0/3.0, ix.AvgDocLength(), 1e-9)
}

func TestInvertedIgnoresReAdd(t *testing.T) {
	ix := NewInverted()
	ix.Add(0, "docker")
	ix.Add(0, "python python")
	assert.Equal(t, 1, ix.DocCount())
	assert.Nil(t, ix.Postings("python"))
	assert.Equal(t, 1, ix.TermCount())
}

func TestInvertedEmpty(t *testing.T) {
	ix := NewInverted()
	assert.Zero(t, ix.AvgDocLength())
	assert.Zero(t, ix.DocLength(5))
}
