// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cobaltcore-dev/nfsquota/pkg/producers/quotamonitor"
)

// QuotaMonitorSettings builds a monitor configuration from a producer
// entry, falling back to the global section.
func QuotaMonitorSettings(producer ProducerConfig, globalConfig GlobalConfig) quotamonitor.QuotaMonitorConfig {
	natsURL := GetStringSetting(producer.Settings, "nats_url", globalConfig.NatsURL)
	return quotamonitor.QuotaMonitorConfig{
		ConfPath:         GetStringSetting(producer.Settings, "conf_path", globalConfig.ConfPath),
		Filesystems:      GetStringSliceSetting(producer.Settings, "filesystems", nil),
		UIDRange:         GetStringSetting(producer.Settings, "uid_range", ""),
		NatsURL:          natsURL,
		NatsSubject:      GetStringSetting(producer.Settings, "nats_subject", "fs.quotas.state"),
		UseNats:          natsURL != "",
		Prometheus:       GetBoolSetting(producer.Settings, "prometheus", false),
		PrometheusPort:   GetIntSetting(producer.Settings, "prometheus_port", 8080),
		Interval:         GetIntSetting(producer.Settings, "interval", 300),
		Rate:             GetFloat64Setting(producer.Settings, "rate", 0),
		NFSTimeout:       GetFloat64Setting(producer.Settings, "nfs_timeout", globalConfig.NFSTimeout),
		NFSRetryTimeout:  GetFloat64Setting(producer.Settings, "nfs_retry_timeout", globalConfig.NFSRetryTimeout),
		ThresholdPercent: GetFloat64Setting(producer.Settings, "threshold_percent", 0),
		WatchConf:        GetBoolSetting(producer.Settings, "watch_conf", false),
		NodeName:         GetStringSetting(producer.Settings, "node_name", globalConfig.NodeName),
		InstanceID:       GetStringSetting(producer.Settings, "instance_id", globalConfig.InstanceID),
	}
}

// StartProducers runs one configured producer until ctx is done.
func StartProducers(ctx context.Context, producer ProducerConfig, globalConfig GlobalConfig) error {
	switch producer.Type {
	case "quota_monitor":
		settings := QuotaMonitorSettings(producer, globalConfig)
		if err := quotamonitor.Validate(settings); err != nil {
			return fmt.Errorf("producer %s: %w", producer.Name, err)
		}
		log.Info().Str("name", producer.Name).Msg("--- quota monitor ---")
		return quotamonitor.StartMonitoring(ctx, settings)
	default:
		log.Warn().Msgf("unknown producer type: %s", producer.Type)
		return nil
	}
}
