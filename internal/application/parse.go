package application

import (
	"fmt"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/ports"
)

// modelAliases maps normalized names to model kinds. Besides the
// enumeration values it accepts the descriptive model names.
var modelAliases = map[string]domain.ModelKind{
	"MOS":                    domain.ModelMOS,
	"P910":                   domain.ModelP910,
	"BIAS_REMOVED":           domain.ModelP910,
	"P913":                   domain.ModelP913,
	"MLE":                    domain.ModelP913,
	"MLE_BIAS_INCONSISTENCY": domain.ModelP913,
	"BT500":                  domain.ModelBT500,
	"OUTLIER_REJECTION":      domain.ModelBT500,
	"THURSTONE_MLE":          domain.ModelThurstoneMLE,
	"THURSTONE":              domain.ModelThurstoneMLE,
	"BT_MLE":                 domain.ModelBradleyTerryMLE,
	"BRADLEY_TERRY":          domain.ModelBradleyTerryMLE,
	"BRADLEY_TERRY_MLE":      domain.ModelBradleyTerryMLE,
}

// maxSuggestionDistance bounds the edit distance of a "did you mean" hint.
const maxSuggestionDistance = 3

func normalizeModelName(name string) string {
	// A Caser is stateful, so each call gets its own.
	n := cases.Upper(language.Und).String(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", " ", "_").Replace(n)
}

// ParseModelKind resolves a model name case-insensitively. Dashes and
// spaces are read as underscores, so "bradley-terry" names BT_MLE. An
// unknown name wraps domain.ErrUnknownModel and, when a known name is
// close enough, suggests it.
func ParseModelKind(name string) (domain.ModelKind, error) {
	key := normalizeModelName(name)
	if kind, ok := modelAliases[key]; ok {
		return kind, nil
	}
	if hint := suggestModel(key); hint != "" {
		return "", fmt.Errorf("%w: %q (did you mean %s?)", domain.ErrUnknownModel, name, hint)
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownModel, name)
}

// suggestModel returns the alias closest to key, preferring the
// lexicographically smaller alias on ties.
func suggestModel(key string) string {
	if key == "" {
		return ""
	}
	names := make([]string, 0, len(modelAliases))
	for n := range modelAliases {
		names = append(names, n)
	}
	slices.Sort(names)

	best, bestDist := "", maxSuggestionDistance+1
	for _, n := range names {
		if d := levenshtein.ComputeDistance(key, n); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

// ParseModelKinds parses every name, dropping blanks and duplicates while
// keeping the first-seen order.
func ParseModelKinds(names []string) ([]domain.ModelKind, error) {
	out := make([]domain.ModelKind, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		kind, err := ParseModelKind(name)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, kind) {
			out = append(out, kind)
		}
	}
	return out, nil
}

// SelectModels parses names and checks that every model belongs to family.
// No names selects the whole family in canonical order.
func SelectModels(names []string, family domain.ModelFamily) ([]domain.ModelKind, error) {
	kinds, err := ParseModelKinds(names)
	if err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		switch family {
		case domain.FamilyRating:
			return slices.Clone(domain.RatingModels), nil
		case domain.FamilyPaired:
			return slices.Clone(domain.PairedModels), nil
		default:
			return nil, fmt.Errorf("%w: model family %q", domain.ErrInvalidConfiguration, family)
		}
	}
	for _, k := range kinds {
		if k.Family() != family {
			return nil, fmt.Errorf("%w: %s is a %s model, the dataset needs %s models",
				ports.ErrWrongFamily, k, k.Family(), family)
		}
	}
	return kinds, nil
}
