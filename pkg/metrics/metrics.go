// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package metrics exports quota records as Prometheus gauges.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
)

var labels = []string{"uid", "user", "filesystem", "node", "instance"}

// QuotaGauges holds one gauge vector per exported quota field.
type QuotaGauges struct {
	Registry *prometheus.Registry

	usedBytes  *prometheus.GaugeVec
	softBytes  *prometheus.GaugeVec
	hardBytes  *prometheus.GaugeVec
	usedFiles  *prometheus.GaugeVec
	softFiles  *prometheus.GaugeVec
	hardFiles  *prometheus.GaugeVec
	state      *prometheus.GaugeVec
	graceLeft  *prometheus.GaugeVec
	lastUpdate prometheus.Gauge
}

func gauge(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
}

// NewQuotaGauges registers the quota gauges on a fresh registry.
func NewQuotaGauges() *QuotaGauges {
	g := &QuotaGauges{
		Registry:  prometheus.NewRegistry(),
		usedBytes: gauge("fs_quota_used_bytes", "Bytes used"),
		softBytes: gauge("fs_quota_soft_limit_bytes", "Byte soft limit, 0 when unset"),
		hardBytes: gauge("fs_quota_hard_limit_bytes", "Byte hard limit, 0 when unset"),
		usedFiles: gauge("fs_quota_used_files", "Files used"),
		softFiles: gauge("fs_quota_soft_limit_files", "File soft limit, 0 when unset"),
		hardFiles: gauge("fs_quota_hard_limit_files", "File hard limit, 0 when unset"),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fs_quota_state",
			Help: "Quota state: 0 none, 1 under, 2 not started, 3 grace active, 4 expired",
		}, append(labels, "resource")),
		graceLeft: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fs_quota_grace_seconds_left",
			Help: "Seconds of grace left while the grace timer runs",
		}, append(labels, "resource")),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fs_quota_last_update_timestamp_seconds",
			Help: "Time of the last quota update",
		}),
	}
	g.Registry.MustRegister(g.usedBytes, g.softBytes, g.hardBytes, g.usedFiles, g.softFiles, g.hardFiles,
		g.state, g.graceLeft, g.lastUpdate)
	return g
}

// Set records r as seen from node/instance.
func (g *QuotaGauges) Set(r *quota.Record, node, instance string) {
	l := prometheus.Labels{
		"uid":        strconv.FormatUint(uint64(r.UID), 10),
		"user":       r.Name,
		"filesystem": r.Label,
		"node":       node,
		"instance":   instance,
	}
	g.usedBytes.With(l).Set(float64(r.Bytes.Used))
	g.softBytes.With(l).Set(float64(r.Bytes.Soft))
	g.hardBytes.With(l).Set(float64(r.Bytes.Hard))
	g.usedFiles.With(l).Set(float64(r.Files.Used))
	g.softFiles.With(l).Set(float64(r.Files.Soft))
	g.hardFiles.With(l).Set(float64(r.Files.Hard))

	for res, u := range map[string]quota.Usage{"bytes": r.Bytes, "files": r.Files} {
		rl := prometheus.Labels{"resource": res}
		for k, v := range l {
			rl[k] = v
		}
		g.state.With(rl).Set(float64(u.State))
		g.graceLeft.With(rl).Set(float64(u.SecondsLeft))
	}
	g.lastUpdate.SetToCurrentTime()
}

// Reset drops all series, so users that disappeared stop being exported.
func (g *QuotaGauges) Reset() {
	for _, v := range []*prometheus.GaugeVec{g.usedBytes, g.softBytes, g.hardBytes, g.usedFiles,
		g.softFiles, g.hardFiles, g.state, g.graceLeft} {
		v.Reset()
	}
}

// ResetNode drops the series published by node and keeps the others.
func (g *QuotaGauges) ResetNode(node string) {
	match := prometheus.Labels{"node": node}
	for _, v := range []*prometheus.GaugeVec{g.usedBytes, g.softBytes, g.hardBytes, g.usedFiles,
		g.softFiles, g.hardFiles, g.state, g.graceLeft} {
		v.DeletePartialMatch(match)
	}
}

// Serve exposes the registry on /metrics until ctx is done.
func (g *QuotaGauges) Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Msgf("starting prometheus metrics server on :%d", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("error starting prometheus metrics server: %w", err)
	}
	return nil
}
