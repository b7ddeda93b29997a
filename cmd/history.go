/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/space2thread/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect processed jobs and thread runs",
	Long:  `List, inspect and summarise the jobs and thread runs recorded in the SQLite run history.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs and thread runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		jobs, err := db.ListJobs(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		runs, err := db.ListThreadRuns(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list thread runs: %w", err)
		}

		if len(jobs) == 0 && len(runs) == 0 {
			fmt.Println("No history yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "JOB\tCREATED\tSOURCE\tAUDIO")
		for _, j := range jobs {
			source := j.SourceURL
			if source == "" {
				source = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", j.ID, j.CreatedAt.Format("2006-01-02 15:04"), source, j.AudioPath)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "RUN\tCREATED\tJOB\tAPPROVED\tITERATIONS")
		for _, r := range runs {
			job := r.JobID
			if job == "" {
				job = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%d\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04"), job, r.Outcome.Approved, r.Outcome.Iterations)
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a job report or a thread run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		job, err := db.GetJob(ctx, args[0])
		if err == nil {
			fmt.Printf("Job:    %s\nSource: %s\nAudio:  %s\n", job.ID, job.SourceURL, job.AudioPath)
			fmt.Println(job.Report)
			run, err := db.LatestThreadRun(ctx, job.ID)
			if err == nil {
				printRun(run)
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		run, err := db.GetThreadRun(ctx, args[0])
		if err != nil {
			return err
		}
		printRun(run)
		return nil
	},
}

func printRun(run *store.ThreadRun) {
	fmt.Printf("\n=== Thread run %s (approved: %t, iterations: %d) ===\n\n", run.ID, run.Outcome.Approved, run.Outcome.Iterations)
	fmt.Println(run.Outcome.Thread)
	for _, rec := range run.Outcome.FeedbackHistory {
		fmt.Printf("\nRound %d (score %.1f): %s\n", rec.Iteration, rec.Score, rec.Feedback)
	}
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run history statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Jobs:             %d\n", stats.Jobs)
		fmt.Printf("Thread runs:      %d\n", stats.ThreadRuns)
		fmt.Printf("Approved:         %d\n", stats.Approved)
		fmt.Printf("Avg iterations:   %.2f\n", stats.AvgIterations)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyStatsCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum entries per table")
}
