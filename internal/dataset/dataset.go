// Package dataset reads, validates and writes subjective test datasets and
// converts them into the matrices consumed by the models.
//
// A dataset lists reference videos and distorted videos. Every distorted
// video carries an "os" field holding its opinion scores in one of three
// layouts:
//
//	os: [4, 5, 3]                    # positional, one subject per position
//	os: {alice: 4, bob: [4, 5]}      # keyed by subject, optional repetitions
//	os: [{subject: alice, compared_asset_id: 2, score: 1}]   # paired comparison
//
// Files are JSON (.json) or YAML (.yaml, .yml).
package dataset

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Dataset is the on-disk form of a subjective experiment.
type Dataset struct {
	Name      string     `json:"dataset_name,omitempty" yaml:"dataset_name,omitempty"`
	RefScore  *float64   `json:"ref_score,omitempty" yaml:"ref_score,omitempty"`
	YUVFormat string     `json:"yuv_fmt,omitempty" yaml:"yuv_fmt,omitempty"`
	Width     int        `json:"width,omitempty" yaml:"width,omitempty" validate:"gte=0"`
	Height    int        `json:"height,omitempty" yaml:"height,omitempty" validate:"gte=0"`
	RefVideos []RefVideo `json:"ref_videos" yaml:"ref_videos" validate:"required,dive"`
	DisVideos []DisVideo `json:"dis_videos" yaml:"dis_videos" validate:"required,dive"`
}

// RefVideo is an undistorted source video.
type RefVideo struct {
	ContentID   *int   `json:"content_id" yaml:"content_id" validate:"required,gte=0"`
	ContentName string `json:"content_name,omitempty" yaml:"content_name,omitempty"`
	Path        string `json:"path" yaml:"path" validate:"required"`
}

// DisVideo is a distorted video and the opinions collected for it.
type DisVideo struct {
	AssetID   *int           `json:"asset_id" yaml:"asset_id" validate:"required,gte=0"`
	ContentID *int           `json:"content_id" yaml:"content_id" validate:"required,gte=0"`
	Path      string         `json:"path" yaml:"path" validate:"required"`
	OS        *OpinionScores `json:"os" yaml:"os" validate:"required"`
}

// Kind distinguishes rating datasets from paired-comparison datasets.
type Kind string

// Dataset kinds.
const (
	KindRating Kind = "rating"
	KindPaired Kind = "paired"
)

// Kind reports whether the dataset holds ratings or paired comparisons.
// A dataset without any paired entry is a rating dataset.
func (d *Dataset) Kind() Kind {
	for _, dv := range d.DisVideos {
		if dv.OS != nil && dv.OS.Layout == LayoutPaired {
			return KindPaired
		}
	}
	return KindRating
}

// Layout is the shape of one video's "os" field.
type Layout int

// Supported layouts. LayoutEmpty is an empty list or mapping.
const (
	LayoutEmpty Layout = iota
	LayoutPositional
	LayoutKeyed
	LayoutPaired
)

func (l Layout) String() string {
	switch l {
	case LayoutPositional:
		return "positional"
	case LayoutKeyed:
		return "keyed"
	case LayoutPaired:
		return "paired"
	}
	return "empty"
}

// PairedScore is one comparison of the enclosing video against another
// asset. Score is the share of the trial won by the enclosing video: 1 for
// a win, 0 for a loss, 0.5 for a tie.
type PairedScore struct {
	Subject         string  `json:"subject" yaml:"subject"`
	ComparedAssetID int     `json:"compared_asset_id" yaml:"compared_asset_id"`
	Score           float64 `json:"score" yaml:"score"`
}

// OpinionScores is the normalised "os" field of a distorted video. Exactly
// one of Positional, Keyed or Paired is populated, as indicated by Layout.
type OpinionScores struct {
	Layout     Layout
	Positional []float64
	Keyed      map[string][]float64
	Paired     []PairedScore
}

// PositionalScores returns scores given by subjects "0", "1", ... in order.
func PositionalScores(scores ...float64) *OpinionScores {
	if len(scores) == 0 {
		return &OpinionScores{}
	}
	return &OpinionScores{Layout: LayoutPositional, Positional: slices.Clone(scores)}
}

// KeyedScores returns scores keyed by subject name.
func KeyedScores(scores map[string][]float64) *OpinionScores {
	if len(scores) == 0 {
		return &OpinionScores{}
	}
	return &OpinionScores{Layout: LayoutKeyed, Keyed: maps.Clone(scores)}
}

// PairedScores returns paired-comparison entries.
func PairedScores(entries ...PairedScore) *OpinionScores {
	if len(entries) == 0 {
		return &OpinionScores{}
	}
	return &OpinionScores{Layout: LayoutPaired, Paired: slices.Clone(entries)}
}

// Subjects returns the subject names of the entry in a stable order.
func (o *OpinionScores) Subjects() []string {
	switch o.Layout {
	case LayoutKeyed:
		return slices.Sorted(maps.Keys(o.Keyed))
	case LayoutPositional:
		names := make([]string, len(o.Positional))
		for i := range names {
			names[i] = positionalSubject(i)
		}
		return names
	case LayoutPaired:
		var names []string
		for _, p := range o.Paired {
			if !slices.Contains(names, p.Subject) {
				names = append(names, p.Subject)
			}
		}
		slices.Sort(names)
		return names
	}
	return nil
}

// UnmarshalJSON decodes any of the supported layouts.
func (o *OpinionScores) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return o.decode(raw)
}

// UnmarshalYAML decodes any of the supported layouts.
func (o *OpinionScores) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return o.decode(raw)
}

// MarshalJSON writes the layout back in its on-disk shape.
func (o OpinionScores) MarshalJSON() ([]byte, error) { return json.Marshal(o.encode()) }

// MarshalYAML writes the layout back in its on-disk shape.
func (o OpinionScores) MarshalYAML() (any, error) { return o.encode(), nil }

func (o *OpinionScores) encode() any {
	switch o.Layout {
	case LayoutPositional:
		return o.Positional
	case LayoutKeyed:
		out := make(map[string]any, len(o.Keyed))
		for name, scores := range o.Keyed {
			if len(scores) == 1 {
				out[name] = scores[0]
			} else {
				out[name] = scores
			}
		}
		return out
	case LayoutPaired:
		return o.Paired
	}
	return []float64{}
}

func (o *OpinionScores) decode(raw any) error {
	*o = OpinionScores{}
	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return nil
		}
		if _, ok := asMap(v[0]); ok {
			return o.decodePaired(v)
		}
		o.Layout = LayoutPositional
		o.Positional = make([]float64, len(v))
		for i, x := range v {
			f, ok := toFloat(x)
			if !ok {
				return fmt.Errorf("os[%d]: expected a number, got %T", i, x)
			}
			o.Positional[i] = f
		}
		return nil
	case nil:
		return fmt.Errorf("os must be a list or a mapping, got null")
	}

	m, ok := asMap(raw)
	if !ok {
		return fmt.Errorf("os must be a list or a mapping, got %T", raw)
	}
	if len(m) == 0 {
		return nil
	}
	o.Layout = LayoutKeyed
	o.Keyed = make(map[string][]float64, len(m))
	for name, x := range m {
		if f, ok := toFloat(x); ok {
			o.Keyed[name] = []float64{f}
			continue
		}
		list, ok := x.([]any)
		if !ok || len(list) == 0 {
			return fmt.Errorf("os[%q]: expected a number or a non-empty list of numbers", name)
		}
		scores := make([]float64, len(list))
		for i, y := range list {
			f, ok := toFloat(y)
			if !ok {
				return fmt.Errorf("os[%q][%d]: expected a number, got %T", name, i, y)
			}
			scores[i] = f
		}
		o.Keyed[name] = scores
	}
	return nil
}

func (o *OpinionScores) decodePaired(entries []any) error {
	o.Layout = LayoutPaired
	o.Paired = make([]PairedScore, len(entries))
	for i, e := range entries {
		m, ok := asMap(e)
		if !ok {
			return fmt.Errorf("os[%d]: expected a comparison entry, got %T", i, e)
		}
		subject, ok := m["subject"]
		if !ok {
			return fmt.Errorf("os[%d]: missing subject", i)
		}
		asset, ok := toFloat(m["compared_asset_id"])
		if !ok || asset != math.Trunc(asset) {
			return fmt.Errorf("os[%d]: compared_asset_id must be an integer", i)
		}
		score, ok := toFloat(m["score"])
		if !ok {
			return fmt.Errorf("os[%d]: score must be a number", i)
		}
		o.Paired[i] = PairedScore{
			Subject:         fmt.Sprint(subject),
			ComparedAssetID: int(asset),
			Score:           score,
		}
	}
	return nil
}

// asMap accepts both string-keyed maps and the generic maps yaml.v3 produces
// for non-string keys such as numeric subject ids.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, x := range m {
			out[fmt.Sprint(k)] = x
		}
		return out, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func positionalSubject(i int) string { return fmt.Sprintf("%d", i) }
