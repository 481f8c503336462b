// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/host"
	"github.com/spf13/cobra"

	"github.com/cobaltcore-dev/nfsquota/pkg/producers/quotamonitor"
	"github.com/cobaltcore-dev/nfsquota/pkg/rpc"
)

var (
	qmConfPath         string
	qmFilesystems      []string
	qmUIDRange         string
	qmNatsURL          string
	qmNatsSubject      string
	qmPrometheus       bool
	qmPrometheusPort   int
	qmInterval         int
	qmRate             float64
	qmNFSTimeout       float64
	qmNFSRetryTimeout  float64
	qmThresholdPercent float64
	qmWatchConf        bool
	qmNodeName         string
	qmInstanceID       string
)

var quotaMonitorCmd = &cobra.Command{
	Use:   "quota-monitor",
	Short: "Periodically scan quotas and publish them to NATS or Prometheus",
	RunE: func(cmd *cobra.Command, args []string) error {
		config := quotamonitor.QuotaMonitorConfig{
			ConfPath:         qmConfPath,
			Filesystems:      qmFilesystems,
			UIDRange:         qmUIDRange,
			NatsURL:          qmNatsURL,
			NatsSubject:      qmNatsSubject,
			Prometheus:       qmPrometheus,
			PrometheusPort:   qmPrometheusPort,
			Interval:         qmInterval,
			Rate:             qmRate,
			NFSTimeout:       qmNFSTimeout,
			NFSRetryTimeout:  qmNFSRetryTimeout,
			ThresholdPercent: qmThresholdPercent,
			WatchConf:        qmWatchConf,
			NodeName:         qmNodeName,
			InstanceID:       qmInstanceID,
		}

		config = mergeQuotaMonitorConfigWithEnv(config)
		config.UseNats = config.NatsURL != ""
		config = defaultQuotaMonitorIdentity(config)

		event := log.Info()
		event.Str("conf_path", config.ConfPath)
		event.Strs("filesystems", config.Filesystems)
		event.Bool("use_nats", config.UseNats)
		if config.UseNats {
			event.Str("nats_url", config.NatsURL)
			event.Str("nats_subject", config.NatsSubject)
		}
		event.Bool("prometheus_enabled", config.Prometheus)
		if config.Prometheus {
			event.Int("prometheus_port", config.PrometheusPort)
		}
		event.Str("node_name", config.NodeName)
		event.Str("instance_id", config.InstanceID)
		event.Int("interval_seconds", config.Interval)
		event.Float64("rate", config.Rate)
		event.Float64("threshold_percent", config.ThresholdPercent)
		event.Bool("watch_conf", config.WatchConf)
		event.Msg("configuration_loaded")

		if err := quotamonitor.Validate(config); err != nil {
			return fmt.Errorf("invalid quota monitor configuration: %w", err)
		}

		return quotamonitor.StartMonitoring(cmd.Context(), config)
	},
}

func mergeQuotaMonitorConfigWithEnv(cfg quotamonitor.QuotaMonitorConfig) quotamonitor.QuotaMonitorConfig {
	cfg.ConfPath = getEnv("QUOTA_CONF", cfg.ConfPath)
	cfg.Filesystems = getEnvStringSlice("FILESYSTEMS", cfg.Filesystems)
	cfg.UIDRange = getEnv("UID_RANGE", cfg.UIDRange)
	cfg.NatsURL = getEnv("NATS_URL", cfg.NatsURL)
	cfg.NatsSubject = getEnv("NATS_SUBJECT", cfg.NatsSubject)
	cfg.Prometheus = getEnvBool("PROMETHEUS", cfg.Prometheus)
	cfg.PrometheusPort = getEnvInt("PROMETHEUS_PORT", cfg.PrometheusPort)
	cfg.Interval = getEnvInt("INTERVAL", cfg.Interval)
	cfg.Rate = getEnvFloat("RATE", cfg.Rate)
	cfg.NFSTimeout = getEnvFloat("NFS_TIMEOUT", cfg.NFSTimeout)
	cfg.NFSRetryTimeout = getEnvFloat("NFS_RETRY_TIMEOUT", cfg.NFSRetryTimeout)
	cfg.ThresholdPercent = getEnvFloat("THRESHOLD_PERCENT", cfg.ThresholdPercent)
	cfg.WatchConf = getEnvBool("WATCH_CONF", cfg.WatchConf)
	cfg.NodeName = getEnv("NODE_NAME", cfg.NodeName)
	cfg.InstanceID = getEnv("INSTANCE_ID", cfg.InstanceID)

	return cfg
}

// defaultQuotaMonitorIdentity fills in the node name from the host and a
// random instance id when neither flags nor environment set them.
func defaultQuotaMonitorIdentity(cfg quotamonitor.QuotaMonitorConfig) quotamonitor.QuotaMonitorConfig {
	if cfg.NodeName == "" {
		if info, err := host.Info(); err == nil {
			cfg.NodeName = info.Hostname
		} else {
			log.Warn().Err(err).Msg("could not read host info")
		}
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.New().String()
	}
	return cfg
}

func init() {
	quotaMonitorCmd.Flags().StringVar(&qmConfPath, "config", defaultConfPath, "Path to quota.conf")
	quotaMonitorCmd.Flags().StringSliceVar(&qmFilesystems, "filesystems", nil, "Labels of filesystems to monitor (default all)")
	quotaMonitorCmd.Flags().StringVar(&qmUIDRange, "uid-range", "", "Range or list of uids to query instead of the password file")
	quotaMonitorCmd.Flags().StringVar(&qmNatsURL, "nats-url", "", "NATS server URL")
	quotaMonitorCmd.Flags().StringVar(&qmNatsSubject, "nats-subject", "fs.quotas.state", "NATS subject to publish quota records")
	quotaMonitorCmd.Flags().BoolVar(&qmPrometheus, "prometheus", false, "Enable Prometheus metrics")
	quotaMonitorCmd.Flags().IntVar(&qmPrometheusPort, "prometheus-port", 8080, "Prometheus metrics port")
	quotaMonitorCmd.Flags().IntVar(&qmInterval, "interval", 300, "Interval in seconds between scans")
	quotaMonitorCmd.Flags().Float64Var(&qmRate, "rate", 0, "Maximum queries per second (0 is unlimited)")
	quotaMonitorCmd.Flags().Float64Var(&qmNFSTimeout, "nfs-timeout", rpc.DefaultTimeout.Seconds(), "Total seconds to wait for an rquota reply")
	quotaMonitorCmd.Flags().Float64Var(&qmNFSRetryTimeout, "nfs-retry-timeout", rpc.DefaultRetryTimeout.Seconds(), "Seconds between rquota retransmissions")
	quotaMonitorCmd.Flags().Float64Var(&qmThresholdPercent, "threshold-percent", 0, "Only publish users at or above this percentage of their hard limit")
	quotaMonitorCmd.Flags().BoolVar(&qmWatchConf, "watch-conf", false, "Reload quota.conf when it changes")
	quotaMonitorCmd.Flags().StringVar(&qmNodeName, "node-name", "", "Name of the node (default hostname)")
	quotaMonitorCmd.Flags().StringVar(&qmInstanceID, "instance-id", "", "Instance ID (default random)")
}
