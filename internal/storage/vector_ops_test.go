package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializeVector(t *testing.T) {
	in := []float32{0, 1.5, -2.25, float32(math.Pi)}
	blob := serializeVector(in)
	assert.Len(t, blob, 16)
	assert.Equal(t, in, deserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSortCandidates(t *testing.T) {
	c := []ScoredFragment{
		{Fragment: Fragment{Ordinal: 3}, Score: 0.5},
		{Fragment: Fragment{Ordinal: 1}, Score: 0.9},
		{Fragment: Fragment{Ordinal: 0}, Score: 0.5},
	}
	sortCandidates(c)
	assert.Equal(t, 1, c[0].Ordinal)
	assert.Equal(t, 0, c[1].Ordinal)
	assert.Equal(t, 3, c[2].Ordinal)
}
