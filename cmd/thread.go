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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/space2thread/internal/tweets"
)

var (
	threadTranscript string
	threadSegments   string
	threadJSON       bool
	threadNoSave     bool
	threadSplit      bool
)

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Draft a tweet thread from a transcript and segments",
	Long: `Run the writer/judge refinement loop on an existing transcript and
segment list. The writer drafts, the judge scores; rejected drafts are
rewritten with the judge's feedback for at most three rounds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transcript, err := os.ReadFile(threadTranscript)
		if err != nil {
			return fmt.Errorf("failed to read transcript: %w", err)
		}
		var segments []byte
		if threadSegments != "" {
			if segments, err = os.ReadFile(threadSegments); err != nil {
				return fmt.Errorf("failed to read segments: %w", err)
			}
		}

		ctx := context.Background()
		caller, err := newCaller(ctx)
		if err != nil {
			return err
		}

		out, err := newGenerator(caller, newConfigStore()).Generate(ctx, string(transcript), string(segments))
		if err != nil {
			return err
		}

		if !threadNoSave {
			history, err := openHistory()
			if err != nil {
				return err
			}
			defer history.Close()
			if id, err := history.SaveThreadRun(ctx, "", out); err != nil {
				log.Warn(ctx, "Failed to save thread run: %v", err)
			} else {
				fmt.Fprintf(os.Stderr, "Saved as run %s\n", id)
			}
		}

		if threadJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		fmt.Printf("=== Tweet thread (approved: %t, iterations: %d) ===\n\n", out.Approved, out.Iterations)
		if threadSplit {
			printTweets(out.Thread)
		} else {
			fmt.Println(out.Thread)
		}
		for _, rec := range out.FeedbackHistory {
			fmt.Fprintf(os.Stderr, "Round %d (score %.1f): %s\n", rec.Iteration, rec.Score, rec.Feedback)
		}
		return nil
	},
}

func printTweets(thread string) {
	list := tweets.Split(thread)
	if over := tweets.Overlong(list); len(over) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d tweet(s) exceed %d characters, splitting them\n", len(over), tweets.MaxLength)
		list = tweets.Fit(list)
	}
	for i, tw := range list {
		fmt.Printf("[%d/%d] (%d chars)\n%s\n\n", i+1, len(list), tweets.Length(tw), tw)
	}
}

func init() {
	rootCmd.AddCommand(threadCmd)

	threadCmd.Flags().StringVarP(&threadTranscript, "transcript", "t", "", "Transcript file (required)")
	threadCmd.Flags().StringVarP(&threadSegments, "segments", "s", "", "Viral segments file")
	threadCmd.Flags().BoolVar(&threadJSON, "json", false, "Print the outcome as JSON")
	threadCmd.Flags().BoolVar(&threadNoSave, "no-save", false, "Do not record the run in the history")
	threadCmd.Flags().BoolVar(&threadSplit, "split", false, "Print the thread as numbered tweets")

	threadCmd.MarkFlagRequired("transcript")
}
