package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/ports"
)

func TestParseModelKind(t *testing.T) {
	tests := []struct {
		name string
		want domain.ModelKind
	}{
		{name: "MOS", want: domain.ModelMOS},
		{name: "mos", want: domain.ModelMOS},
		{name: " p910 ", want: domain.ModelP910},
		{name: "bias-removed", want: domain.ModelP910},
		{name: "P913", want: domain.ModelP913},
		{name: "mle_bias_inconsistency", want: domain.ModelP913},
		{name: "Outlier Rejection", want: domain.ModelBT500},
		{name: "bt500", want: domain.ModelBT500},
		{name: "thurstone", want: domain.ModelThurstoneMLE},
		{name: "THURSTONE_MLE", want: domain.ModelThurstoneMLE},
		{name: "Bradley-Terry", want: domain.ModelBradleyTerryMLE},
		{name: "bt_mle", want: domain.ModelBradleyTerryMLE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseModelKind(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseModelKind_Unknown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantHint string
	}{
		{name: "typo", input: "p9133", wantHint: "did you mean P913?"},
		{name: "misspelled thurstone", input: "thurstn", wantHint: "did you mean THURSTONE?"},
		{name: "far from everything", input: "linear-regression"},
		{name: "empty", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModelKind(tt.input)
			require.ErrorIs(t, err, domain.ErrUnknownModel)
			if tt.wantHint == "" {
				assert.NotContains(t, err.Error(), "did you mean")
			} else {
				assert.Contains(t, err.Error(), tt.wantHint)
			}
		})
	}
}

func TestParseModelKinds(t *testing.T) {
	kinds, err := ParseModelKinds([]string{"mos", "MOS", " ", "p910", "bias_removed", "P913"})
	require.NoError(t, err)
	assert.Equal(t, []domain.ModelKind{domain.ModelMOS, domain.ModelP910, domain.ModelP913}, kinds)

	_, err = ParseModelKinds([]string{"mos", "nope"})
	assert.ErrorIs(t, err, domain.ErrUnknownModel)
}

func TestSelectModels(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		family  domain.ModelFamily
		want    []domain.ModelKind
		wantErr error
	}{
		{name: "all rating models", family: domain.FamilyRating, want: domain.RatingModels},
		{name: "all paired models", names: []string{""}, family: domain.FamilyPaired, want: domain.PairedModels},
		{
			name:   "subset",
			names:  []string{"bt500", "mos"},
			family: domain.FamilyRating,
			want:   []domain.ModelKind{domain.ModelBT500, domain.ModelMOS},
		},
		{name: "wrong family", names: []string{"mos"}, family: domain.FamilyPaired, wantErr: ports.ErrWrongFamily},
		{name: "unknown", names: []string{"x"}, family: domain.FamilyRating, wantErr: domain.ErrUnknownModel},
		{name: "unknown family", family: "audio", wantErr: domain.ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectModels(tt.names, tt.family)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
