package domain

import (
	"fmt"
	"math"
	"slices"
)

// Video identifies one stimulus. Reference videos carry Reference=true and
// share their ContentID with the distorted videos derived from them.
type Video struct {
	// ContentID groups a reference video with its distorted versions.
	ContentID int `json:"content_id"`

	// AssetID uniquely identifies a distorted video. It is -1 for reference
	// videos that were not listed as assets.
	AssetID int `json:"asset_id"`

	// Name is a display name, usually the content name or file base name.
	Name string `json:"name,omitempty"`

	// Path is the media path recorded in the dataset. The engine never opens it.
	Path string `json:"path,omitempty"`

	// Reference marks the undistorted source video of a content.
	Reference bool `json:"reference,omitempty"`
}

// Label returns a stable human-readable identifier for the video.
func (v Video) Label() string {
	if v.Name != "" {
		return v.Name
	}
	return fmt.Sprintf("c%d_a%d", v.ContentID, v.AssetID)
}

// Observation is a single opinion score of one subject for one video.
// Repetitions of the same (video, subject) pair yield several observations.
type Observation struct {
	Video   int
	Subject int
	Score   float64
}

// cellKey addresses one (video, subject) cell.
type cellKey struct {
	video   int
	subject int
}

// OpinionMatrix is an immutable sparse video × subject table of opinion
// scores. Absent cells mean the subject did not rate the video; present cells
// hold one or more finite scores. The matrix is safe for concurrent reads.
type OpinionMatrix struct {
	videos   []Video
	subjects []string
	cells    map[cellKey][]float64
	// rows lists, per video, the subjects that rated it in ascending order.
	rows [][]int
	// cols lists, per subject, the videos they rated in ascending order.
	cols [][]int
	// total is the number of observations including repetitions.
	total int
}

// NumVideos returns the number of videos.
func (m *OpinionMatrix) NumVideos() int { return len(m.videos) }

// NumSubjects returns the number of subjects.
func (m *OpinionMatrix) NumSubjects() int { return len(m.subjects) }

// NumObservations returns the number of observations including repetitions.
func (m *OpinionMatrix) NumObservations() int { return m.total }

// Video returns the video at index i.
func (m *OpinionMatrix) Video(i int) Video { return m.videos[i] }

// Videos returns a copy of all videos in index order.
func (m *OpinionMatrix) Videos() []Video { return slices.Clone(m.videos) }

// Subject returns the identifier of the subject at index i.
func (m *OpinionMatrix) Subject(i int) string { return m.subjects[i] }

// Subjects returns a copy of all subject identifiers in index order.
func (m *OpinionMatrix) Subjects() []string { return slices.Clone(m.subjects) }

// Cell returns a copy of the scores of subject s for video v and whether the
// cell is present.
func (m *OpinionMatrix) Cell(v, s int) ([]float64, bool) {
	scores, ok := m.cells[cellKey{video: v, subject: s}]
	if !ok {
		return nil, false
	}
	return slices.Clone(scores), true
}

// Raters returns the subjects that rated video v, in ascending order.
func (m *OpinionMatrix) Raters(v int) []int { return slices.Clone(m.rows[v]) }

// RatedVideos returns the videos rated by subject s, in ascending order.
func (m *OpinionMatrix) RatedVideos(s int) []int { return slices.Clone(m.cols[s]) }

// VideoScores returns every score recorded for video v ordered by subject
// then repetition.
func (m *OpinionMatrix) VideoScores(v int) []float64 {
	var out []float64
	for _, s := range m.rows[v] {
		out = append(out, m.cells[cellKey{video: v, subject: s}]...)
	}
	return out
}

// Count returns the number of observations for video v.
func (m *OpinionMatrix) Count(v int) int {
	n := 0
	for _, s := range m.rows[v] {
		n += len(m.cells[cellKey{video: v, subject: s}])
	}
	return n
}

// Observations flattens the matrix into a fresh slice ordered by video,
// subject and repetition. Solvers use it as their private working copy.
func (m *OpinionMatrix) Observations() []Observation {
	out := make([]Observation, 0, m.total)
	for v, raters := range m.rows {
		for _, s := range raters {
			for _, score := range m.cells[cellKey{video: v, subject: s}] {
				out = append(out, Observation{Video: v, Subject: s, Score: score})
			}
		}
	}
	return out
}

// Differential converts raw scores into differential scores. For every
// distorted video each subject's score becomes
//
//	score - mean(reference scores of the same subject) + refScore
//
// where the reference is the video of the same content flagged Reference.
// Cells whose subject did not rate the reference are dropped. Each
// subject's reference scores therefore average to refScore.
func (m *OpinionMatrix) Differential(refScore float64) (*OpinionMatrix, error) {
	if math.IsNaN(refScore) || math.IsInf(refScore, 0) {
		return nil, fmt.Errorf("%w: reference score %v", ErrInvalidObservation, refScore)
	}

	refByContent := make(map[int]int)
	for i, v := range m.videos {
		if v.Reference {
			refByContent[v.ContentID] = i
		}
	}

	b := NewOpinionMatrixBuilder()
	for _, name := range m.subjects {
		b.AddSubject(name)
	}
	for i, v := range m.videos {
		b.AddVideo(v)
		ref, ok := refByContent[v.ContentID]
		if !ok {
			return nil, fmt.Errorf("%w: video %s has no reference for content %d",
				ErrInvalidConfiguration, v.Label(), v.ContentID)
		}
		for _, s := range m.rows[i] {
			refScores, ok := m.cells[cellKey{video: ref, subject: s}]
			if !ok {
				continue
			}
			var refMean float64
			for _, x := range refScores {
				refMean += x
			}
			refMean /= float64(len(refScores))

			scores := m.cells[cellKey{video: i, subject: s}]
			diff := make([]float64, len(scores))
			for k, x := range scores {
				diff[k] = x - refMean + refScore
			}
			if err := b.Add(i, m.subjects[s], diff...); err != nil {
				return nil, err
			}
		}
	}
	return b.Build()
}

// OpinionMatrixBuilder accumulates videos, subjects and scores into an
// OpinionMatrix. It is not safe for concurrent use.
type OpinionMatrixBuilder struct {
	videos     []Video
	subjects   []string
	subjectIdx map[string]int
	cells      map[cellKey][]float64
}

// NewOpinionMatrixBuilder creates an empty builder.
func NewOpinionMatrixBuilder() *OpinionMatrixBuilder {
	return &OpinionMatrixBuilder{
		subjectIdx: make(map[string]int),
		cells:      make(map[cellKey][]float64),
	}
}

// AddVideo appends a video and returns its index.
func (b *OpinionMatrixBuilder) AddVideo(v Video) int {
	b.videos = append(b.videos, v)
	return len(b.videos) - 1
}

// AddSubject registers a subject and returns its index. Registering an
// existing subject returns the existing index.
func (b *OpinionMatrixBuilder) AddSubject(name string) int {
	if idx, ok := b.subjectIdx[name]; ok {
		return idx
	}
	b.subjects = append(b.subjects, name)
	b.subjectIdx[name] = len(b.subjects) - 1
	return len(b.subjects) - 1
}

// Add appends scores for the given video and subject. The subject is
// registered on first use. Every score must be finite.
func (b *OpinionMatrixBuilder) Add(video int, subject string, scores ...float64) error {
	if video < 0 || video >= len(b.videos) {
		return fmt.Errorf("%w: video %d", ErrIndexOutOfRange, video)
	}
	if len(scores) == 0 {
		return fmt.Errorf("%w: no scores for video %d subject %q", ErrInvalidObservation, video, subject)
	}
	for _, x := range scores {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: score %v for video %d subject %q", ErrInvalidObservation, x, video, subject)
		}
	}
	s := b.AddSubject(subject)
	key := cellKey{video: video, subject: s}
	b.cells[key] = append(b.cells[key], scores...)
	return nil
}

// Build freezes the accumulated data into an OpinionMatrix. The builder
// must not be reused afterwards.
func (b *OpinionMatrixBuilder) Build() (*OpinionMatrix, error) {
	if len(b.videos) == 0 || len(b.subjects) == 0 {
		return nil, fmt.Errorf("%w: videos=%d, subjects=%d", ErrEmptyMatrix, len(b.videos), len(b.subjects))
	}

	m := &OpinionMatrix{
		videos:   slices.Clone(b.videos),
		subjects: slices.Clone(b.subjects),
		cells:    make(map[cellKey][]float64, len(b.cells)),
		rows:     make([][]int, len(b.videos)),
		cols:     make([][]int, len(b.subjects)),
	}
	for key, scores := range b.cells {
		m.cells[key] = slices.Clone(scores)
		m.rows[key.video] = append(m.rows[key.video], key.subject)
		m.cols[key.subject] = append(m.cols[key.subject], key.video)
		m.total += len(scores)
	}
	for i := range m.rows {
		slices.Sort(m.rows[i])
	}
	for i := range m.cols {
		slices.Sort(m.cols[i])
	}
	return m, nil
}
