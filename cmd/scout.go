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

	"github.com/spf13/cobra"
)

var scoutCmd = &cobra.Command{
	Use:   "scout [username]",
	Short: "Find the latest Space hosted by an account",
	Long: `Search for the most recent Space hosted by username using the Apify
twitter-scraper actor. Requires APIFY_API_TOKEN.

Without a username, scout.default_username is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := appCfg.Scout.DefaultUsername
		if len(args) == 1 {
			username = args[0]
		}

		sc, err := newScout()
		if err != nil {
			return err
		}
		url, err := sc.LatestSpace(context.Background(), username)
		if err != nil {
			return err
		}
		fmt.Println(url)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoutCmd)
}
