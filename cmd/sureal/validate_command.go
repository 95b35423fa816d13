package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-sureal/internal/dataset"
	"github.com/ahrav/go-sureal/internal/domain"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a dataset without running any model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := ctx.ensureConfig(cmd.ErrOrStderr()); err != nil {
				return err
			}
			d, err := dataset.Load(cmd.Context(), path)
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Kind", string(d.Kind())},
				{"Reference videos", strconv.Itoa(len(d.RefVideos))},
				{"Distorted videos", strconv.Itoa(len(d.DisVideos))},
				{"Subjects", strconv.Itoa(len(d.Subjects()))},
			}
			if d.Name != "" {
				rows = append([][]string{{"Name", d.Name}}, rows...)
			}

			switch d.Kind() {
			case dataset.KindPaired:
				pm, err := dataset.BuildPairwiseMatrix(d)
				if err != nil {
					return err
				}
				var total float64
				for i := range pm.NumVideos() {
					total += pm.TotalWins(i)
				}
				rows = append(rows,
					[]string{"Comparisons", strconv.FormatFloat(total, 'f', -1, 64)},
					[]string{"Components", strconv.Itoa(len(pm.Components()))},
				)
			default:
				om, err := dataset.BuildOpinionMatrix(d)
				if err != nil {
					return err
				}
				var empty int
				for v := range om.NumVideos() {
					if om.Count(v) == 0 {
						empty++
					}
				}
				rows = append(rows,
					[]string{"Observations", strconv.Itoa(om.NumObservations())},
					[]string{"Unrated videos", strconv.Itoa(empty)},
				)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(path, []string{"Field", "Value"}, rows,
				[]columnAlignment{alignLeft, alignRight}))
			fmt.Fprintln(cmd.OutOrStdout(), "dataset is valid")
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "dataset", "d", "", "Dataset file (.json, .yaml, .yml)")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the supported models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows [][]string
			for _, k := range append(append([]domain.ModelKind{}, domain.RatingModels...), domain.PairedModels...) {
				iterative := "no"
				if k.Iterative() {
					iterative = "yes"
				}
				rows = append(rows, []string{k.String(), string(k.Family()), iterative, k.Description()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable("", []string{"Model", "Family", "Iterative", "Description"}, rows, nil))
			return nil
		},
	}
}
