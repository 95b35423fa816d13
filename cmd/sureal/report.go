package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ahrav/go-sureal/internal/application"
	"github.com/ahrav/go-sureal/internal/domain"
)

// report is the JSON document written by rate and pc. Undefined estimates
// are encoded as null.
type report struct {
	RunID        string        `json:"run_id"`
	Dataset      string        `json:"dataset"`
	Command      string        `json:"command"`
	Differential bool          `json:"differential,omitempty"`
	GeneratedAt  time.Time     `json:"generated_at"`
	Models       []modelReport `json:"models"`
}

type modelReport struct {
	Model         string          `json:"model"`
	Description   string          `json:"description"`
	Error         string          `json:"error,omitempty"`
	Converged     bool            `json:"converged"`
	Status        string          `json:"status,omitempty"`
	Iterations    int             `json:"iterations"`
	LogLikelihood *float64        `json:"log_likelihood,omitempty"`
	Separated     bool            `json:"separated,omitempty"`
	ElapsedMS     float64         `json:"elapsed_ms"`
	Videos        []videoReport   `json:"videos,omitempty"`
	Subjects      []subjectReport `json:"subjects,omitempty"`
}

type videoReport struct {
	Video        string   `json:"video"`
	ContentID    int      `json:"content_id"`
	AssetID      int      `json:"asset_id"`
	Estimate     *float64 `json:"estimate"`
	StdErr       *float64 `json:"std_err"`
	CILow        *float64 `json:"ci_low"`
	CIHigh       *float64 `json:"ci_high"`
	Count        float64  `json:"count"`
	Insufficient bool     `json:"insufficient,omitempty"`
}

type subjectReport struct {
	Subject             string   `json:"subject"`
	Bias                *float64 `json:"bias"`
	BiasStdErr          *float64 `json:"bias_std_err"`
	Inconsistency       *float64 `json:"inconsistency"`
	InconsistencyStdErr *float64 `json:"inconsistency_std_err"`
	Ratings             int      `json:"ratings"`
	Rejected            bool     `json:"rejected,omitempty"`
	Outliers            int      `json:"outliers,omitempty"`
}

func num(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

func newRatingReport(name string, dmos bool, batch *application.Batch[*domain.RecoveryResult]) *report {
	r := &report{RunID: batch.RunID, Dataset: name, Command: "rate", Differential: dmos, GeneratedAt: time.Now().UTC()}
	for _, o := range batch.Outcomes {
		mr := modelReport{
			Model:       o.Model.String(),
			Description: o.Model.Description(),
			ElapsedMS:   float64(o.Elapsed) / float64(time.Millisecond),
		}
		if o.Err != nil {
			mr.Error = o.Err.Error()
			r.Models = append(r.Models, mr)
			continue
		}
		res := o.Result
		mr.Converged = res.Converged
		mr.Status = string(res.Status)
		mr.Iterations = res.Iterations
		mr.LogLikelihood = num(res.LogLikelihood)
		for _, v := range res.Videos {
			mr.Videos = append(mr.Videos, videoReport{
				Video:        v.Video.Label(),
				ContentID:    v.Video.ContentID,
				AssetID:      v.Video.AssetID,
				Estimate:     num(v.Quality),
				StdErr:       num(v.StdErr),
				CILow:        num(v.CI.Low),
				CIHigh:       num(v.CI.High),
				Count:        float64(v.Count),
				Insufficient: v.Insufficient,
			})
		}
		for _, s := range res.Subjects {
			mr.Subjects = append(mr.Subjects, subjectReport{
				Subject:             s.Subject,
				Bias:                num(s.Bias),
				BiasStdErr:          num(s.BiasStdErr),
				Inconsistency:       num(s.Inconsistency),
				InconsistencyStdErr: num(s.InconsistencyStdErr),
				Ratings:             s.RatingCount,
				Rejected:            s.Rejected,
				Outliers:            s.OutlierCount,
			})
		}
		r.Models = append(r.Models, mr)
	}
	return r
}

func newMeritReport(name string, batch *application.Batch[*domain.MeritResult]) *report {
	r := &report{RunID: batch.RunID, Dataset: name, Command: "pc", GeneratedAt: time.Now().UTC()}
	for _, o := range batch.Outcomes {
		mr := modelReport{
			Model:       o.Model.String(),
			Description: o.Model.Description(),
			ElapsedMS:   float64(o.Elapsed) / float64(time.Millisecond),
		}
		if o.Err != nil {
			mr.Error = o.Err.Error()
			r.Models = append(r.Models, mr)
			continue
		}
		res := o.Result
		mr.Converged = res.Converged
		mr.Status = string(res.Status)
		mr.Iterations = res.Iterations
		mr.LogLikelihood = num(res.LogLikelihood)
		mr.Separated = res.Separated
		for _, v := range res.Videos {
			mr.Videos = append(mr.Videos, videoReport{
				Video:        v.Video.Label(),
				ContentID:    v.Video.ContentID,
				AssetID:      v.Video.AssetID,
				Estimate:     num(v.Merit),
				StdErr:       num(v.StdErr),
				CILow:        num(v.CI.Low),
				CIHigh:       num(v.CI.High),
				Count:        v.Comparisons,
				Insufficient: v.Comparisons == 0,
			})
		}
		r.Models = append(r.Models, mr)
	}
	return r
}

// writeJSON encodes v as indented JSON to w.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeReport stores r as <dir>/<dataset>_<command>.json and returns the path.
func writeReport(dir string, r *report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, reportStem(r.Dataset)+"_"+r.Command+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	if err := writeJSON(f, r); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func reportStem(name string) string {
	stem := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, strings.TrimSpace(name))
	if stem == "" {
		return "dataset"
	}
	return stem
}
