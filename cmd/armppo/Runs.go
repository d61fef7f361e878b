package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/samuelfneumann/armppo/experiment/plotter"
	"github.com/samuelfneumann/armppo/experiment/runstore"
	"github.com/spf13/cobra"
)

var (
	runsDB   string
	plotRun  string
	plotOut  string
	plotDB   string
	plotName string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runstore.Open(runsDB)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tENVIRONMENT\tSTATUS\tITERATIONS\tCREATED")
		for _, run := range runs {
			its, err := store.Iterations(run.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", run.ID, run.Environment,
				run.Status, len(its), run.CreatedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Plot the mean reward history of a recorded run",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runstore.Open(plotDB)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.GetRun(plotRun)
		if err != nil {
			return err
		}
		its, err := store.Iterations(run.ID)
		if err != nil {
			return err
		}

		title := plotName
		if title == "" {
			title = fmt.Sprintf("%v (%v)", run.Environment, run.ID)
		}
		return plotter.SaveMeanRewards(plotOut, title, its)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsDB, "db", "runs.db", "SQLite run store")

	plotCmd.Flags().StringVar(&plotDB, "db", "runs.db", "SQLite run store")
	plotCmd.Flags().StringVar(&plotRun, "run", "", "Run ID (required)")
	plotCmd.Flags().StringVarP(&plotOut, "out", "o", "rewards.png",
		"Output PNG file")
	plotCmd.Flags().StringVar(&plotName, "title", "", "Plot title")
	plotCmd.MarkFlagRequired("run")
}
