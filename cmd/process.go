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
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/space2thread/internal/pipeline"
	"github.com/valpere/space2thread/internal/report"
)

var (
	processFile   string
	processOut    string
	processDocx   string
	processHTML   string
	processJSON   bool
	processNoSave bool
)

var processCmd = &cobra.Command{
	Use:   "process [url]",
	Short: "Download and analyze a Space, then draft a thread",
	Long: `Download a Twitter Space with yt-dlp, transcribe it, extract the
high-value segments and draft a tweet thread.

Use --file to analyze a local recording instead of downloading.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 0) == (processFile == "") {
			return fmt.Errorf("provide either a Space URL or --file")
		}

		ctx := context.Background()
		caller, err := newCaller(ctx)
		if err != nil {
			return err
		}

		var p *pipeline.Pipeline
		if processNoSave {
			p = newPipeline(caller, newConfigStore(), nil)
		} else {
			history, err := openHistory()
			if err != nil {
				return err
			}
			defer history.Close()
			p = newPipeline(caller, newConfigStore(), history)
		}

		var result *pipeline.Result
		if processFile != "" {
			result, err = p.ProcessFile(ctx, processFile)
		} else {
			result, err = p.Process(ctx, args[0])
		}
		if err != nil {
			return err
		}

		return writeProcessResult(result)
	},
}

func writeProcessResult(result *pipeline.Result) error {
	title := strings.TrimSuffix(filepath.Base(result.AudioPath), filepath.Ext(result.AudioPath))

	if processOut != "" {
		if err := writeFile(processOut, []byte(result.MarkdownReport)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", processOut)
	}
	if processDocx != "" {
		if err := report.WriteDocx(title, result.MarkdownReport, processDocx); err != nil {
			return fmt.Errorf("failed to write docx: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Word report written to %s\n", processDocx)
	}
	if processHTML != "" {
		if err := writeFile(processHTML, []byte(report.ToPage(title, result.MarkdownReport))); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "HTML report written to %s\n", processHTML)
	}

	if processJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if processOut == "" {
		fmt.Println(result.MarkdownReport)
	}
	if result.ThreadResult != nil {
		fmt.Printf("\n=== Tweet thread (approved: %t, iterations: %d) ===\n\n", result.ThreadResult.Approved, result.ThreadResult.Iterations)
		fmt.Println(result.ThreadResult.Thread)
	}
	if result.JobID != "" {
		fmt.Fprintf(os.Stderr, "Saved as job %s\n", result.JobID)
	}
	if result.DuplicateOf != "" {
		fmt.Fprintf(os.Stderr, "Same transcript as job %s\n", result.DuplicateOf)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&processFile, "file", "f", "", "Local audio file to analyze instead of a URL")
	processCmd.Flags().StringVarP(&processOut, "out", "o", "", "Write the markdown report to this file")
	processCmd.Flags().StringVar(&processDocx, "docx", "", "Also export the report as a Word document")
	processCmd.Flags().StringVar(&processHTML, "html", "", "Also export the report as HTML")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "Print the full result as JSON")
	processCmd.Flags().BoolVar(&processNoSave, "no-save", false, "Do not record the job in the run history")
}
