// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cobaltcore-dev/nfsquota/pkg/producers/config"
)

var configFilePath string

var producerCmd = &cobra.Command{
	Use:   "producer",
	Short: "Producer commands",
}

var useConfigCmd = &cobra.Command{
	Use:   "use-config",
	Short: "Start producers using configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFilePath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		for _, producer := range cfg.Producers {
			producer := producer
			g.Go(func() error {
				return config.StartProducers(ctx, producer, cfg.Global)
			})
		}

		return g.Wait()
	},
}

func init() {
	useConfigCmd.Flags().StringVar(&configFilePath, "config", "", "Path to configuration file")
	_ = useConfigCmd.MarkFlagRequired("config")
	producerCmd.AddCommand(useConfigCmd)

	producerCmd.AddCommand(quotaMonitorCmd)
}
