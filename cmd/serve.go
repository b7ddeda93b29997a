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
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/space2thread/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API used by the web frontend.

Routes live under /api; Prometheus metrics are served on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("host") {
			appCfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			appCfg.Server.Port = servePort
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

		cfgStore := newConfigStore()
		deps := server.Deps{
			Catalog:         newCatalog(),
			Config:          cfgStore,
			Threads:         newGenerator(caller, cfgStore),
			Pipeline:        newPipeline(caller, cfgStore, history),
			Clips:           newRenderer(),
			History:         history,
			DefaultUsername: appCfg.Scout.DefaultUsername,
			Logger:          log,
		}
		if sc, err := newScout(); err != nil {
			log.Warn(ctx, "Scout disabled: %v", err)
		} else {
			deps.Scout = sc
		}

		srv := server.New(appCfg.Server, deps)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides server.host)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides server.port)")
}
