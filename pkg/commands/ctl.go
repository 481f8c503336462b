// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultConfPath = "/etc/quota.conf"

var (
	v            string
	runningInPod bool
)

var rootCmd = &cobra.Command{
	Use:   "nfsquota",
	Short: "Quota reporting for NFS and Lustre",
	Long:  "A CLI tool to report user quotas on NFS (rquota) and Lustre filesystems, and to publish them as metrics.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setUpLogs(v); err != nil {
			return err
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	runningInPod = checkIfRunningInPod()

	rootCmd.PersistentFlags().StringVar(&v, "verbosity", zerolog.WarnLevel.String(), "Log level (debug, info, warn, error, fatal, panic)")

	// Add subcommands
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(repquotaCmd)
	rootCmd.AddCommand(confCmd)
	rootCmd.AddCommand(consumerCmd)
	rootCmd.AddCommand(producerCmd)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "nfsquota: %s\n", err)
		os.Exit(1)
	}
}

// setUpLogs sets the log output and the log level. Logs go to stderr so
// they never mix with reports on stdout.
func setUpLogs(level string) error {
	zerolog.SetGlobalLevel(zerolog.WarnLevel) // Default level
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	if runningInPod {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Info().Msg("running in pod")
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return nil
}

// raiseToDebug is used by the report commands' debug flags.
func raiseToDebug() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// checkIfRunningInPod checks if the application is running in a Kubernetes pod
func checkIfRunningInPod() bool {
	if _, err := os.Stat("/run/secrets/kubernetes.io/serviceaccount/ca.crt"); err == nil {
		if _, err := os.Stat("/run/secrets/kubernetes.io/serviceaccount/token"); err == nil {
			if _, ok := os.LookupEnv("KUBERNETES_SERVICE_HOST"); ok {
				if _, ok := os.LookupEnv("KUBERNETES_SERVICE_PORT"); ok {
					return true
				}
			}
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// seconds converts a fractional seconds flag into a duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
