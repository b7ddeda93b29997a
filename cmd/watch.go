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
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valpere/space2thread/internal/watcher"
)

var watchDir string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process recordings dropped into the inbox directory",
	Long: `Watch paths.inbox for new .mp3, .m4a, .wav and .ogg files and run the
analysis on each. The report is written next to the recording as
<name>.report.md. At most watch.max_concurrent files are processed at once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inbox := appCfg.Paths.Inbox
		if watchDir != "" {
			inbox = watchDir
		}
		if err := os.MkdirAll(inbox, 0o755); err != nil {
			return fmt.Errorf("failed to create inbox: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		caller, err := newCaller(ctx)
		if err != nil {
			return err
		}
		history, err := openHistory()
		if err != nil {
			return err
		}
		defer history.Close()

		p := newPipeline(caller, newConfigStore(), history)
		handler := func(ctx context.Context, path string) error {
			result, err := p.ProcessFile(ctx, path)
			if err != nil {
				return err
			}
			out := strings.TrimSuffix(path, filepath.Ext(path)) + ".report.md"
			content := result.MarkdownReport
			if result.ThreadResult != nil {
				content += "\n\n# Tweet Thread\n\n" + result.ThreadResult.Thread + "\n"
			}
			return writeFile(out, []byte(content))
		}

		w, err := watcher.New(inbox, handler, log, appCfg.Watch.MaxConcurrent)
		if err != nil {
			return err
		}
		defer w.Stop()

		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchDir, "dir", "", "Inbox directory (overrides paths.inbox)")
}
