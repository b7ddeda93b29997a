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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/space2thread/internal/config"
)

var setPromptFile string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit model selections and prompts",
	Long: `Model selections are kept in config.json and prompts in the prompts
directory. Every run re-reads both, so edits apply to the next run.

Keys: transcript, extract, verify, thread_writer, thread_judge`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current models and prompts as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := newConfigStore().Load()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

var configSetModelCmd = &cobra.Command{
	Use:   "set-model <key> <model>",
	Short: "Select the model used for a step",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgStore := newConfigStore()
		doc, err := cfgStore.Load()
		if err != nil {
			return err
		}

		models := make(map[string]string, len(doc.Models)+1)
		for k, v := range doc.Models {
			models[k] = v
		}
		models[args[0]] = args[1]

		if _, err := cfgStore.Update(config.Update{Models: models}); err != nil {
			return err
		}
		fmt.Printf("Model for %s set to %s\n", args[0], args[1])
		return nil
	},
}

var configSetPromptCmd = &cobra.Command{
	Use:   "set-prompt <key>",
	Short: "Replace a prompt with the contents of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(setPromptFile)
		if err != nil {
			return fmt.Errorf("failed to read prompt file: %w", err)
		}
		if _, err := newConfigStore().Update(config.Update{Prompts: map[string]string{args[0]: string(content)}}); err != nil {
			return err
		}
		fmt.Printf("Prompt %s updated (%d bytes)\n", args[0], len(content))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetModelCmd, configSetPromptCmd)

	configSetPromptCmd.Flags().StringVarP(&setPromptFile, "file", "f", "", "File holding the prompt text (required)")
	configSetPromptCmd.MarkFlagRequired("file")
}
