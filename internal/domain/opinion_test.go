package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpinionMatrixBuilder(t *testing.T) {
	b := NewOpinionMatrixBuilder()
	v0 := b.AddVideo(Video{ContentID: 0, AssetID: 0, Name: "ref", Reference: true})
	v1 := b.AddVideo(Video{ContentID: 0, AssetID: 1})
	assert.Equal(t, 0, b.AddSubject("bob"))
	assert.Equal(t, 0, b.AddSubject("bob"))

	require.NoError(t, b.Add(v0, "alice", 5))
	require.NoError(t, b.Add(v1, "alice", 3, 4))
	require.NoError(t, b.Add(v1, "bob", 2))

	m, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, 2, m.NumVideos())
	assert.Equal(t, 2, m.NumSubjects())
	assert.Equal(t, 4, m.NumObservations())
	assert.Equal(t, []string{"bob", "alice"}, m.Subjects())
	assert.Equal(t, []int{0, 1}, m.Raters(v1))
	assert.Equal(t, []int{1}, m.RatedVideos(0))
	assert.Equal(t, 3, m.Count(v1))
	assert.Equal(t, []float64{2, 3, 4}, m.VideoScores(v1))
	assert.Equal(t, "c0_a1", m.Video(v1).Label())
	assert.Equal(t, "ref", m.Video(v0).Label())

	cell, ok := m.Cell(v1, 1)
	require.True(t, ok)
	assert.Equal(t, []float64{3, 4}, cell)
	cell[0] = 100
	again, _ := m.Cell(v1, 1)
	assert.Equal(t, 3.0, again[0], "cells are returned as copies")

	_, ok = m.Cell(v0, 0)
	assert.False(t, ok)

	assert.Equal(t, []Observation{
		{Video: 0, Subject: 1, Score: 5},
		{Video: 1, Subject: 0, Score: 2},
		{Video: 1, Subject: 1, Score: 3},
		{Video: 1, Subject: 1, Score: 4},
	}, m.Observations())
}

func TestOpinionMatrixBuilder_Errors(t *testing.T) {
	b := NewOpinionMatrixBuilder()
	b.AddVideo(Video{})

	assert.ErrorIs(t, b.Add(1, "a", 1), ErrIndexOutOfRange)
	assert.ErrorIs(t, b.Add(-1, "a", 1), ErrIndexOutOfRange)
	assert.ErrorIs(t, b.Add(0, "a"), ErrInvalidObservation)
	assert.ErrorIs(t, b.Add(0, "a", math.NaN()), ErrInvalidObservation)
	assert.ErrorIs(t, b.Add(0, "a", math.Inf(1)), ErrInvalidObservation)

	_, err := NewOpinionMatrixBuilder().Build()
	assert.ErrorIs(t, err, ErrEmptyMatrix)

	noSubjects := NewOpinionMatrixBuilder()
	noSubjects.AddVideo(Video{})
	_, err = noSubjects.Build()
	assert.ErrorIs(t, err, ErrEmptyMatrix)
}

func TestOpinionMatrix_Differential(t *testing.T) {
	b := NewOpinionMatrixBuilder()
	ref := b.AddVideo(Video{ContentID: 0, AssetID: 0, Reference: true})
	dis := b.AddVideo(Video{ContentID: 0, AssetID: 1})
	require.NoError(t, b.Add(ref, "a", 4, 5))
	require.NoError(t, b.Add(dis, "a", 3))
	require.NoError(t, b.Add(ref, "b", 5))
	require.NoError(t, b.Add(dis, "b", 2))
	// c never rated the reference, so their cell drops.
	require.NoError(t, b.Add(dis, "c", 1))
	m, err := b.Build()
	require.NoError(t, err)

	d, err := m.Differential(5)
	require.NoError(t, err)

	refCell, ok := d.Cell(ref, 0)
	require.True(t, ok)
	assert.Equal(t, []float64{4.5, 5.5}, refCell)

	a, _ := d.Cell(dis, 0)
	assert.Equal(t, []float64{3.5}, a)
	bb, _ := d.Cell(dis, 1)
	assert.Equal(t, []float64{2}, bb)
	_, ok = d.Cell(dis, 2)
	assert.False(t, ok)
	assert.Equal(t, 3, d.NumSubjects())

	_, err = m.Differential(math.NaN())
	assert.ErrorIs(t, err, ErrInvalidObservation)
}

func TestOpinionMatrix_DifferentialWithoutReference(t *testing.T) {
	b := NewOpinionMatrixBuilder()
	v := b.AddVideo(Video{ContentID: 3, AssetID: 1})
	require.NoError(t, b.Add(v, "a", 3))
	m, err := b.Build()
	require.NoError(t, err)

	_, err = m.Differential(5)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
