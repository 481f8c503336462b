// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package quotamonitor periodically scans the configured filesystems and
// publishes the resulting quota records.
package quotamonitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cobaltcore-dev/nfsquota/pkg/conf"
	"github.com/cobaltcore-dev/nfsquota/pkg/metrics"
	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
	"github.com/cobaltcore-dev/nfsquota/pkg/scan"
	"github.com/cobaltcore-dev/nfsquota/pkg/source"
)

type Monitor struct {
	cfg QuotaMonitorConfig
	src source.Source

	// Users enumerates accounts when no uid range is configured.
	Users func() ([]scan.User, error)
	Now   func() time.Time

	limiter *rate.Limiter

	mu   sync.RWMutex
	conf *conf.Config
}

func NewMonitor(cfg QuotaMonitorConfig, src source.Source) (*Monitor, error) {
	m := &Monitor{
		cfg:   cfg,
		src:   src,
		Users: func() ([]scan.User, error) { return scan.ReadPasswd(scan.PasswdPath) },
		Now:   time.Now,
	}
	if cfg.Rate > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload rereads quota.conf. The previous configuration stays in effect on error.
func (m *Monitor) Reload() error {
	c, err := conf.Load(m.cfg.ConfPath)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.conf = c
	m.mu.Unlock()
	return nil
}

func (m *Monitor) entries() ([]conf.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.cfg.Filesystems) == 0 {
		return m.conf.Entries, nil
	}
	var out []conf.Entry
	for _, label := range m.cfg.Filesystems {
		e, ok := m.conf.ByLabel(label)
		if !ok {
			return nil, fmt.Errorf("%s: not found in quota.conf", label)
		}
		out = append(out, e)
	}
	return out, nil
}

// publishable reports whether r is at or above the configured threshold.
// A zero threshold publishes every record.
func (m *Monitor) publishable(r *quota.Record) bool {
	pct := int(m.cfg.ThresholdPercent)
	if pct == 0 {
		return true
	}
	return r.Bytes.State.Over() || r.Files.State.Over() ||
		r.Bytes.OverThreshold(pct) || r.Files.OverThreshold(pct)
}

// Collect scans every monitored filesystem once. A filesystem that cannot
// be scanned is logged and skipped.
func (m *Monitor) Collect(ctx context.Context) ([]quota.Event, error) {
	entries, err := m.entries()
	if err != nil {
		return nil, err
	}

	var uids []uint32
	var users []scan.User
	if m.cfg.UIDRange != "" {
		if uids, err = scan.ParseUIDList(m.cfg.UIDRange); err != nil {
			return nil, err
		}
	}
	if users, err = m.Users(); err != nil {
		if uids == nil {
			return nil, fmt.Errorf("error reading users: %w", err)
		}
		log.Warn().Err(err).Msg("error reading users, names unavailable")
	}

	now := m.Now()
	var events []quota.Event
	for _, e := range entries {
		sc := &scan.Scanner{
			Source:  m.src,
			Store:   quota.NewStore(),
			Limiter: m.limiter,
			Lookup:  scan.Names(users),
		}
		if uids != nil {
			err = sc.UIDScan(ctx, e, uids)
		} else {
			err = sc.PasswdScan(ctx, e, users, nil)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error().Err(err).Str("filesystem", e.Label).Msg("error scanning filesystem")
			continue
		}
		sc.Store.Sort(quota.ByUID)
		for _, r := range sc.Store.Records() {
			if !m.publishable(r) {
				continue
			}
			events = append(events, quota.Event{
				Record:     *r,
				NodeName:   m.cfg.NodeName,
				InstanceID: m.cfg.InstanceID,
				Timestamp:  now,
			})
		}
	}
	return events, nil
}

func (m *Monitor) publish(nc *nats.Conn, gauges *metrics.QuotaGauges, events []quota.Event) {
	if gauges != nil {
		gauges.Reset()
		for i := range events {
			gauges.Set(&events[i].Record, events[i].NodeName, events[i].InstanceID)
		}
	}

	if nc != nil {
		if err := PublishToNATS(nc, events, m.cfg); err != nil {
			log.Error().Err(err).Msg("error publishing to nats")
		}
		return
	}
	if gauges != nil {
		return
	}
	if len(events) == 0 {
		log.Info().Msg("no quota records found")
		return
	}
	eventsJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("error marshalling quota records to json")
		return
	}
	fmt.Println(string(eventsJSON))
}

func (m *Monitor) run(ctx context.Context, nc *nats.Conn, gauges *metrics.QuotaGauges) error {
	ticker := time.NewTicker(time.Duration(m.cfg.Interval) * time.Second)
	defer ticker.Stop()

	for {
		events, err := m.Collect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("error collecting quotas")
		} else {
			log.Debug().Int("records", len(events)).Msg("quota_scan_done")
			m.publish(nc, gauges, events)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) watchConf(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.cfg.ConfPath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.cfg.ConfPath, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := m.Reload(); err != nil {
				log.Error().Err(err).Str("path", event.Name).Msg("error reloading quota.conf")
				continue
			}
			log.Info().Str("path", event.Name).Msg("quota.conf reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("watcher error")
		}
	}
}

func sourceOptions(cfg QuotaMonitorConfig) source.Options {
	opts := source.DefaultOptions()
	opts.Timeout = time.Duration(cfg.NFSTimeout * float64(time.Second))
	opts.RetryTimeout = time.Duration(cfg.NFSRetryTimeout * float64(time.Second))
	return opts
}

// StartMonitoring runs the scan loop until ctx is cancelled.
func StartMonitoring(ctx context.Context, cfg QuotaMonitorConfig) error {
	m, err := NewMonitor(cfg, source.New(sourceOptions(cfg)))
	if err != nil {
		return err
	}

	var nc *nats.Conn
	if cfg.UseNats {
		nc, err = nats.Connect(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("error connecting to nats: %w", err)
		}
		defer nc.Close()
	}

	g, ctx := errgroup.WithContext(ctx)

	var gauges *metrics.QuotaGauges
	if cfg.Prometheus {
		gauges = metrics.NewQuotaGauges()
		g.Go(func() error { return gauges.Serve(ctx, cfg.PrometheusPort) })
	}
	if cfg.WatchConf {
		g.Go(func() error { return m.watchConf(ctx) })
	}
	g.Go(func() error { return m.run(ctx, nc, gauges) })

	return g.Wait()
}
