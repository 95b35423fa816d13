package dataset

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// SchemaError lists every structural or referential problem found in a
// dataset. Models assume a dataset that passed validation.
type SchemaError struct {
	// Source is the file the dataset came from, if any.
	Source string

	// Problems holds one message per violation in discovery order.
	Problems []string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	where := ""
	if e.Source != "" {
		where = " in " + e.Source
	}
	return fmt.Sprintf("invalid dataset%s: %s", where, strings.Join(e.Problems, "; "))
}

func (e *SchemaError) addf(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *SchemaError) errOrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// newValidator returns a validator that reports fields by their json name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks d against the structural rules (required fields) and the
// schema rules: content ids contiguous from 0, distorted videos referencing
// an existing content, unique asset ids, one family of "os" layouts, equal
// positional lengths, finite scores and resolvable paired comparisons.
func Validate(d *Dataset) error {
	return validateDataset(newValidator(), d, "")
}

func validateDataset(v *validator.Validate, d *Dataset, source string) error {
	serr := &SchemaError{Source: source}
	if d == nil {
		serr.addf("dataset is empty")
		return serr
	}

	if err := v.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating dataset: %w", err)
		}
		for _, fe := range verrs {
			serr.addf("%s: failed %q", strings.TrimPrefix(fe.Namespace(), "Dataset."), fe.Tag())
		}
		// Referential checks below dereference required fields.
		return serr
	}

	refs := make(map[int]string, len(d.RefVideos))
	for i, rv := range d.RefVideos {
		if _, dup := refs[*rv.ContentID]; dup {
			serr.addf("ref_videos[%d]: duplicate content_id %d", i, *rv.ContentID)
			continue
		}
		refs[*rv.ContentID] = rv.Path
	}
	for id := range len(refs) {
		if _, ok := refs[id]; !ok {
			serr.addf("ref_videos: content_id values must be contiguous from 0, missing %d", id)
			break
		}
	}

	assets := make(map[int]int, len(d.DisVideos))
	for i, dv := range d.DisVideos {
		if _, ok := refs[*dv.ContentID]; !ok {
			serr.addf("dis_videos[%d]: content_id %d does not reference a ref_video", i, *dv.ContentID)
		}
		if prev, dup := assets[*dv.AssetID]; dup {
			serr.addf("dis_videos[%d]: asset_id %d already used by dis_videos[%d]", i, *dv.AssetID, prev)
			continue
		}
		assets[*dv.AssetID] = i
	}

	validateScores(d, assets, serr)
	return serr.errOrNil()
}

func validateScores(d *Dataset, assets map[int]int, serr *SchemaError) {
	var layouts []Layout
	positional := -1
	for i, dv := range d.DisVideos {
		scores := dv.OS
		if scores.Layout != LayoutEmpty && !slices.Contains(layouts, scores.Layout) {
			layouts = append(layouts, scores.Layout)
		}
		switch scores.Layout {
		case LayoutPositional:
			if positional < 0 {
				positional = len(scores.Positional)
			} else if len(scores.Positional) != positional {
				serr.addf("dis_videos[%d]: positional os has %d scores, expected %d", i, len(scores.Positional), positional)
			}
			for k, x := range scores.Positional {
				if !finite(x) {
					serr.addf("dis_videos[%d].os[%d]: score %v is not finite", i, k, x)
				}
			}
		case LayoutKeyed:
			for _, name := range scores.Subjects() {
				for k, x := range scores.Keyed[name] {
					if !finite(x) {
						serr.addf("dis_videos[%d].os[%q][%d]: score %v is not finite", i, name, k, x)
					}
				}
			}
		case LayoutPaired:
			for k, p := range scores.Paired {
				if p.Subject == "" {
					serr.addf("dis_videos[%d].os[%d]: empty subject", i, k)
				}
				if _, ok := assets[p.ComparedAssetID]; !ok {
					serr.addf("dis_videos[%d].os[%d]: compared_asset_id %d does not exist", i, k, p.ComparedAssetID)
				} else if p.ComparedAssetID == *dv.AssetID {
					serr.addf("dis_videos[%d].os[%d]: video compared with itself", i, k)
				}
				if !finite(p.Score) || p.Score < 0 || p.Score > 1 {
					serr.addf("dis_videos[%d].os[%d]: score %v outside [0, 1]", i, k, p.Score)
				}
			}
		}
	}

	if slices.Contains(layouts, LayoutPaired) && len(layouts) > 1 {
		serr.addf("dis_videos: paired comparisons cannot be mixed with ratings")
	}
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
