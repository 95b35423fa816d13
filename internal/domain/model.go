package domain

// ModelKind identifies one estimator of the closed model enumeration.
// Rating models operate on an OpinionMatrix; paired models operate on a
// PairwiseMatrix.
type ModelKind string

// Supported rating recovery models.
const (
	// ModelMOS is the plain mean opinion score.
	ModelMOS ModelKind = "MOS"

	// ModelP910 removes per-subject additive bias before averaging.
	ModelP910 ModelKind = "P910"

	// ModelP913 jointly estimates quality, subject bias and subject
	// inconsistency by maximum likelihood.
	ModelP913 ModelKind = "P913"

	// ModelBT500 averages after rejecting outlier subjects.
	ModelBT500 ModelKind = "BT500"
)

// Supported paired-comparison models.
const (
	// ModelThurstoneMLE is Thurstone Case V fitted by maximum likelihood.
	ModelThurstoneMLE ModelKind = "THURSTONE_MLE"

	// ModelBradleyTerryMLE is Bradley-Terry fitted by maximum likelihood.
	ModelBradleyTerryMLE ModelKind = "BT_MLE"
)

// ModelFamily groups models by the matrix they consume.
type ModelFamily string

const (
	// FamilyRating models consume an OpinionMatrix.
	FamilyRating ModelFamily = "rating"

	// FamilyPaired models consume a PairwiseMatrix.
	FamilyPaired ModelFamily = "paired"
)

// RatingModels lists the rating models in their canonical order.
var RatingModels = []ModelKind{ModelMOS, ModelP910, ModelP913, ModelBT500}

// PairedModels lists the paired-comparison models in their canonical order.
var PairedModels = []ModelKind{ModelThurstoneMLE, ModelBradleyTerryMLE}

// String returns the enumeration value.
func (k ModelKind) String() string { return string(k) }

// Family reports which matrix the model consumes. It returns an empty
// family for values outside the enumeration.
func (k ModelKind) Family() ModelFamily {
	switch k {
	case ModelMOS, ModelP910, ModelP913, ModelBT500:
		return FamilyRating
	case ModelThurstoneMLE, ModelBradleyTerryMLE:
		return FamilyPaired
	default:
		return ""
	}
}

// Valid reports whether k is part of the enumeration.
func (k ModelKind) Valid() bool { return k.Family() != "" }

// Iterative reports whether the model runs an iterative solver rather than
// a closed-form pass.
func (k ModelKind) Iterative() bool {
	switch k {
	case ModelP913, ModelBT500, ModelThurstoneMLE, ModelBradleyTerryMLE:
		return true
	default:
		return false
	}
}

// Description returns a short human-readable name for the model.
func (k ModelKind) Description() string {
	switch k {
	case ModelMOS:
		return "mean opinion score"
	case ModelP910:
		return "subject bias removed"
	case ModelP913:
		return "maximum likelihood bias and inconsistency"
	case ModelBT500:
		return "outlier subject rejection"
	case ModelThurstoneMLE:
		return "Thurstone case V"
	case ModelBradleyTerryMLE:
		return "Bradley-Terry"
	default:
		return "unknown"
	}
}
