package dataset

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ahrav/go-sureal/internal/domain"
)

// videos maps every distorted video to a domain.Video. A distorted video
// whose path equals the path of its content's reference is flagged as the
// reference.
func (d *Dataset) videos() []domain.Video {
	refs := make(map[int]RefVideo, len(d.RefVideos))
	for _, rv := range d.RefVideos {
		refs[*rv.ContentID] = rv
	}
	out := make([]domain.Video, len(d.DisVideos))
	for i, dv := range d.DisVideos {
		ref := refs[*dv.ContentID]
		out[i] = domain.Video{
			ContentID: *dv.ContentID,
			AssetID:   *dv.AssetID,
			Name:      videoName(dv.Path, ref.ContentName),
			Path:      dv.Path,
			Reference: dv.Path == ref.Path,
		}
	}
	return out
}

func videoName(path, content string) string {
	if path != "" {
		base := filepath.Base(path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return content
}

// Subjects returns every subject named in the dataset. Positional subjects
// "0", "1", ... come first in position order, followed by keyed subjects in
// lexical order.
func (d *Dataset) Subjects() []string {
	var positional int
	keyed := make(map[string]struct{})
	for _, dv := range d.DisVideos {
		switch dv.OS.Layout {
		case LayoutPositional:
			positional = max(positional, len(dv.OS.Positional))
		case LayoutKeyed, LayoutPaired:
			for _, name := range dv.OS.Subjects() {
				keyed[name] = struct{}{}
			}
		}
	}

	out := make([]string, 0, positional+len(keyed))
	for i := range positional {
		name := positionalSubject(i)
		out = append(out, name)
		delete(keyed, name)
	}
	rest := make([]string, 0, len(keyed))
	for name := range keyed {
		rest = append(rest, name)
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// BuildOpinionMatrix converts a validated rating dataset into an
// OpinionMatrix with one row per distorted video.
func BuildOpinionMatrix(d *Dataset) (*domain.OpinionMatrix, error) {
	if d.Kind() != KindRating {
		return nil, fmt.Errorf("%w: dataset %q holds paired comparisons", domain.ErrInvalidConfiguration, d.Name)
	}

	b := domain.NewOpinionMatrixBuilder()
	for _, name := range d.Subjects() {
		b.AddSubject(name)
	}
	for i, v := range d.videos() {
		b.AddVideo(v)
		scores := d.DisVideos[i].OS
		switch scores.Layout {
		case LayoutPositional:
			for s, x := range scores.Positional {
				if err := b.Add(i, positionalSubject(s), x); err != nil {
					return nil, fmt.Errorf("dis_videos[%d]: %w", i, err)
				}
			}
		case LayoutKeyed:
			for _, name := range scores.Subjects() {
				if err := b.Add(i, name, scores.Keyed[name]...); err != nil {
					return nil, fmt.Errorf("dis_videos[%d]: %w", i, err)
				}
			}
		}
	}
	return b.Build()
}

// BuildPairwiseMatrix converts a validated paired-comparison dataset into a
// PairwiseMatrix. Every entry is one independent trial between the
// enclosing video and the compared asset, accumulated across subjects.
func BuildPairwiseMatrix(d *Dataset) (*domain.PairwiseMatrix, error) {
	if d.Kind() != KindPaired {
		return nil, fmt.Errorf("%w: dataset %q holds no paired comparisons", domain.ErrInvalidConfiguration, d.Name)
	}

	b := domain.NewPairwiseMatrixBuilder()
	index := make(map[int]int, len(d.DisVideos))
	for i, v := range d.videos() {
		b.AddVideo(v)
		index[v.AssetID] = i
	}
	for i, dv := range d.DisVideos {
		for k, p := range dv.OS.Paired {
			j, ok := index[p.ComparedAssetID]
			if !ok {
				return nil, fmt.Errorf("dis_videos[%d].os[%d]: %w: compared_asset_id %d",
					i, k, domain.ErrIndexOutOfRange, p.ComparedAssetID)
			}
			if err := b.AddComparison(i, j, p.Score); err != nil {
				return nil, fmt.Errorf("dis_videos[%d].os[%d]: %w", i, k, err)
			}
		}
	}
	return b.Build()
}

// Differential returns the differential opinion matrix of a rating dataset
// using its ref_score. It fails when the dataset has no ref_score.
func Differential(d *Dataset) (*domain.OpinionMatrix, error) {
	if d.RefScore == nil {
		return nil, fmt.Errorf("%w: dataset %q has no ref_score", domain.ErrInvalidConfiguration, d.Name)
	}
	om, err := BuildOpinionMatrix(d)
	if err != nil {
		return nil, err
	}
	return om.Differential(*d.RefScore)
}
