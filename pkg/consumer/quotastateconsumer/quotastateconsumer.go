// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package quotastateconsumer

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/cobaltcore-dev/nfsquota/pkg/metrics"
	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
)

type Consumer struct {
	cfg    QuotaStateConsumerConfig
	gauges *metrics.QuotaGauges
}

func NewConsumer(cfg QuotaStateConsumerConfig) *Consumer {
	c := &Consumer{cfg: cfg}
	if cfg.Prometheus {
		c.gauges = metrics.NewQuotaGauges()
	}
	return c
}

// alerting reports whether ev should be logged as a warning.
func (c *Consumer) alerting(ev *quota.Event) bool {
	pct := int(c.cfg.ThresholdPercent)
	if ev.Threshold > 0 {
		pct = ev.Threshold
	}
	return ev.Bytes.State.Over() || ev.Files.State.Over() ||
		ev.Bytes.OverThreshold(pct) || ev.Files.OverThreshold(pct)
}

// HandleMessage decodes one published batch, replaces the gauges of the
// nodes it came from and logs users that are over quota or over threshold.
// It returns the number of alerting records.
func (c *Consumer) HandleMessage(data []byte) (int, error) {
	var events []quota.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return 0, err
	}

	for i := range events {
		if events[i].NodeName == "" {
			events[i].NodeName = c.cfg.NodeName
		}
		if events[i].InstanceID == "" {
			events[i].InstanceID = c.cfg.InstanceID
		}
	}

	// a batch is a node's full view, so users missing from it are dropped
	if c.gauges != nil {
		reset := map[string]bool{}
		for i := range events {
			if node := events[i].NodeName; !reset[node] {
				c.gauges.ResetNode(node)
				reset[node] = true
			}
		}
	}

	alerts := 0
	for i := range events {
		ev := &events[i]
		if c.gauges != nil {
			c.gauges.Set(&ev.Record, ev.NodeName, ev.InstanceID)
		}
		if !c.alerting(ev) {
			continue
		}
		alerts++
		log.Warn().
			Uint32("uid", ev.UID).
			Str("user", ev.Name).
			Str("filesystem", ev.Label).
			Str("node", ev.NodeName).
			Stringer("bytes_state", ev.Bytes.State).
			Stringer("files_state", ev.Files.State).
			Uint64("used_bytes", ev.Bytes.Used).
			Uint64("hard_limit_bytes", ev.Bytes.Hard).
			Msgf("user: %d, filesystem: %s, bytes: %s, files: %s", ev.UID, ev.Label, ev.Bytes.State, ev.Files.State)
	}
	return alerts, nil
}

// StartQuotaStateConsumer consumes until ctx is cancelled.
func StartQuotaStateConsumer(ctx context.Context, cfg QuotaStateConsumerConfig) error {
	c := NewConsumer(cfg)

	errc := make(chan error, 1)
	if c.gauges != nil {
		go func() { errc <- c.gauges.Serve(ctx, cfg.PrometheusPort) }()
	}

	if err := StartNatsConsumer(ctx, c); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		return err
	}
}
