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
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var modelsFilter string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available on OpenRouter",
	RunE: func(cmd *cobra.Command, args []string) error {
		models := newCatalog().Models(context.Background())
		if len(models) == 0 {
			fmt.Println("No models available.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCONTEXT\tNAME")
		for _, m := range models {
			if modelsFilter != "" && !strings.Contains(strings.ToLower(m.ID), strings.ToLower(modelsFilter)) {
				continue
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", m.ID, m.ContextLength, m.Name)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)

	modelsCmd.Flags().StringVar(&modelsFilter, "filter", "", "Only show model ids containing this text")
}
