// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cobaltcore-dev/nfsquota/pkg/consumer/quotastateconsumer"
)

var (
	qscNatsURL          string
	qscNatsSubject      string
	qscPrometheus       bool
	qscPrometheusPort   int
	qscThresholdPercent float64
	qscNodeName         string
	qscInstanceID       string
)

var quotaStateConsumerCmd = &cobra.Command{
	Use:   "quota-state",
	Short: "Consumer for published quota records",
	RunE: func(cmd *cobra.Command, args []string) error {
		config := quotastateconsumer.QuotaStateConsumerConfig{
			NatsURL:          qscNatsURL,
			NatsSubject:      qscNatsSubject,
			Prometheus:       qscPrometheus,
			PrometheusPort:   qscPrometheusPort,
			ThresholdPercent: qscThresholdPercent,
			NodeName:         qscNodeName,
			InstanceID:       qscInstanceID,
		}

		config = mergeQuotaStateConsumerConfigWithEnv(config)

		event := log.Info()
		event.Str("nats_url", config.NatsURL)
		event.Str("nats_subject", config.NatsSubject)

		event.Bool("prometheus_enabled", config.Prometheus)
		if config.Prometheus {
			event.Int("prometheus_port", config.PrometheusPort)
		}

		event.Str("node_name", config.NodeName)
		event.Str("instance_id", config.InstanceID)
		event.Float64("threshold_percent", config.ThresholdPercent)
		event.Msg("configuration_loaded")

		if err := validateQuotaStateConsumerConfig(config); err != nil {
			return err
		}

		return quotastateconsumer.StartQuotaStateConsumer(cmd.Context(), config)
	},
}

func mergeQuotaStateConsumerConfigWithEnv(cfg quotastateconsumer.QuotaStateConsumerConfig) quotastateconsumer.QuotaStateConsumerConfig {
	cfg.NatsURL = getEnv("NATS_URL", cfg.NatsURL)
	cfg.NatsSubject = getEnv("NATS_SUBJECT", cfg.NatsSubject)
	cfg.Prometheus = getEnvBool("PROMETHEUS", cfg.Prometheus)
	cfg.PrometheusPort = getEnvInt("PROMETHEUS_PORT", cfg.PrometheusPort)
	cfg.ThresholdPercent = getEnvFloat("THRESHOLD_PERCENT", cfg.ThresholdPercent)
	cfg.NodeName = getEnv("NODE_NAME", cfg.NodeName)
	cfg.InstanceID = getEnv("INSTANCE_ID", cfg.InstanceID)

	return cfg
}

func init() {
	quotaStateConsumerCmd.Flags().StringVar(&qscNatsURL, "nats-url", "", "NATS server URL")
	quotaStateConsumerCmd.Flags().StringVar(&qscNatsSubject, "nats-subject", "fs.quotas.state", "NATS subject to subscribe to")
	quotaStateConsumerCmd.Flags().BoolVar(&qscPrometheus, "prometheus", false, "Enable Prometheus metrics")
	quotaStateConsumerCmd.Flags().IntVar(&qscPrometheusPort, "prometheus-port", 8080, "Prometheus metrics port")
	quotaStateConsumerCmd.Flags().Float64Var(&qscThresholdPercent, "threshold-percent", 80.0, "Warn when usage reaches this percentage of the hard limit")
	quotaStateConsumerCmd.Flags().StringVar(&qscNodeName, "node-name", "", "Node name used when a record carries none")
	quotaStateConsumerCmd.Flags().StringVar(&qscInstanceID, "instance-id", "", "Instance ID used when a record carries none")
}

func validateQuotaStateConsumerConfig(config quotastateconsumer.QuotaStateConsumerConfig) error {
	var errs []error

	if config.NatsURL == "" {
		errs = append(errs, errors.New("--nats-url or NATS_URL must be set"))
	}
	if config.NatsSubject == "" {
		errs = append(errs, errors.New("--nats-subject or NATS_SUBJECT must be set"))
	}
	if config.Prometheus && config.PrometheusPort <= 0 {
		errs = append(errs, errors.New("--prometheus-port or PROMETHEUS_PORT must be greater than 0"))
	}
	if config.ThresholdPercent < 0 || config.ThresholdPercent > 100 {
		errs = append(errs, errors.New("--threshold-percent or THRESHOLD_PERCENT must be between 0 and 100"))
	}

	return errors.Join(errs...)
}
