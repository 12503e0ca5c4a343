package recognition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-face-api/internal/models"
)

type mockStore struct {
	sets []models.ReferenceSet
	err  error
}

func (m *mockStore) Put(ctx context.Context, studentID string, embeddings [][]float32) error {
	return nil
}

func (m *mockStore) Get(ctx context.Context, studentID string) ([][]float32, error) {
	return nil, nil
}

func (m *mockStore) All(ctx context.Context) ([]models.ReferenceSet, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sets, nil
}

func (m *mockStore) Delete(ctx context.Context, studentID string) error { return nil }

func (m *mockStore) Dimension() int { return 4 }

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	a := []float32{0.5, 0.5, 0.5, 0.5}
	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-6)
}

func TestCosineSimilarityOrthogonalVectors(t *testing.T) {
	a := []float32{1, 0, 0, 0}
	b := []float32{0, 1, 0, 0}
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-6)
}

func TestCosineSimilarityScaleInvariant(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{2, 4, 6, 8}
	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-6)
}

func TestCosineSimilarityMismatchedLengths(t *testing.T) {
	assert.Equal(t, -1.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Equal(t, -1.0, CosineSimilarity(nil, nil))
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	a := []float32{0, 0, 0, 0}
	b := []float32{1, 1, 1, 1}
	// Epsilon in the denominator keeps this finite.
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-6)
}

func TestMatcherPicksBestPosePerIdentity(t *testing.T) {
	store := &mockStore{sets: []models.ReferenceSet{
		{StudentID: "alice", Embeddings: [][]float32{
			{0, 1, 0, 0},
			{1, 0.1, 0, 0}, // close to the probe
		}},
		{StudentID: "bob", Embeddings: [][]float32{
			{0, 0, 1, 0},
		}},
	}}
	m := NewMatcher(store, zap.NewNop())

	decision, err := m.Match(context.Background(), []float32{1, 0, 0, 0}, 0.4)
	require.NoError(t, err)
	assert.True(t, decision.Matched)
	assert.Equal(t, "alice", decision.StudentID)
	assert.Greater(t, decision.Score, 0.9)
}

func TestMatcherBelowThresholdIsNoMatch(t *testing.T) {
	store := &mockStore{sets: []models.ReferenceSet{
		{StudentID: "alice", Embeddings: [][]float32{{0, 1, 0, 0}}},
	}}
	m := NewMatcher(store, zap.NewNop())

	decision, err := m.Match(context.Background(), []float32{1, 0, 0, 0}, 0.4)
	require.NoError(t, err)
	assert.False(t, decision.Matched)
	assert.Empty(t, decision.StudentID)
	assert.InDelta(t, 0.0, decision.Score, 1e-6)
}

func TestMatcherExactThresholdIsNoMatch(t *testing.T) {
	store := &mockStore{sets: []models.ReferenceSet{
		{StudentID: "alice", Embeddings: [][]float32{{1, 0, 0, 0}}},
	}}
	m := NewMatcher(store, zap.NewNop())

	// Identical vectors score exactly 1.0; threshold 1.0 must not match
	// because the comparison is strictly greater-than.
	decision, err := m.Match(context.Background(), []float32{1, 0, 0, 0}, 1.0)
	require.NoError(t, err)
	assert.False(t, decision.Matched)
}

func TestMatcherEmptyStoreIsNoMatch(t *testing.T) {
	m := NewMatcher(&mockStore{}, zap.NewNop())

	decision, err := m.Match(context.Background(), []float32{1, 0, 0, 0}, 0.4)
	require.NoError(t, err)
	assert.False(t, decision.Matched)
	assert.Empty(t, decision.StudentID)
}

func TestMatcherEmptyProbeIsNoMatch(t *testing.T) {
	store := &mockStore{sets: []models.ReferenceSet{
		{StudentID: "alice", Embeddings: [][]float32{{1, 0, 0, 0}}},
	}}
	m := NewMatcher(store, zap.NewNop())

	decision, err := m.Match(context.Background(), nil, 0.4)
	require.NoError(t, err)
	assert.False(t, decision.Matched)
}

func TestMatcherTieBreaksOnLowestID(t *testing.T) {
	ref := []float32{1, 0, 0, 0}
	store := &mockStore{sets: []models.ReferenceSet{
		{StudentID: "zed", Embeddings: [][]float32{ref}},
		{StudentID: "amy", Embeddings: [][]float32{ref}},
	}}
	m := NewMatcher(store, zap.NewNop())

	decision, err := m.Match(context.Background(), []float32{1, 0, 0, 0}, 0.4)
	require.NoError(t, err)
	assert.True(t, decision.Matched)
	assert.Equal(t, "amy", decision.StudentID)
}
