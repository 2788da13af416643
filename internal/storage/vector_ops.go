package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// searchVector scores every fragment of a build against the query vector in
// Go and returns the best limit hits. Equal scores keep build order.
func searchVector(ctx context.Context, q querier, buildID string, queryVector []float32, limit int) ([]ScoredFragment, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	if limit <= 0 {
		return []ScoredFragment{}, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+fragmentColumns+`, e.vector
		FROM fragments f
		INNER JOIN embeddings e ON e.fragment_id = f.id
		WHERE f.build_id = ?
		ORDER BY f.ordinal
	`, buildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]ScoredFragment, 0, 256)
	for rows.Next() {
		var blob []byte
		f, err := scanFragment(rows, &blob)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			return nil, fmt.Errorf("%w: query has %d, fragment %d has %d",
				ErrDimensionMismatch, len(queryVector), f.ID, len(vector))
		}
		candidates = append(candidates, ScoredFragment{
			Fragment: *f,
			Score:    cosineSimilarity(queryVector, vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortCandidates orders by score descending, then by ordinal
func sortCandidates(candidates []ScoredFragment) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Ordinal < candidates[j].Ordinal
	})
}

// CosineSimilarity is exported for callers that score vectors outside the store
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
