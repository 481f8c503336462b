// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package quotamonitor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobaltcore-dev/nfsquota/pkg/conf"
	"github.com/cobaltcore-dev/nfsquota/pkg/consumer/quotastateconsumer"
	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
	"github.com/cobaltcore-dev/nfsquota/pkg/scan"
	"github.com/cobaltcore-dev/nfsquota/pkg/source"
)

const gib = 1024 * 1024 * 1024

var testNow = time.Unix(1_700_000_000, 0)

// usedBySource reports uid*GiB used against a 10GiB hard limit, and fails
// every query on the "down" host.
var usedBySource = source.Func(func(ctx context.Context, e conf.Entry, uid uint32) (*quota.Record, error) {
	if e.Location.Host == "down" {
		return nil, errors.New("host unreachable")
	}
	r := quota.NewRecord(e, uid)
	r.Bytes = quota.NewUsage(uint64(uid)*gib, 0, 10*gib, quota.Grace{}, testNow)
	r.Files = quota.NewUsage(uint64(uid), 0, 0, quota.Grace{}, testNow)
	return r, nil
})

func writeConf(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "quota.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testConfig(t *testing.T) QuotaMonitorConfig {
	return QuotaMonitorConfig{
		ConfPath:        writeConf(t, t.TempDir(), "home:server1:/export/home\nscratch:down:/export/scratch\n"),
		NatsSubject:     "fs.quotas.state",
		Interval:        10,
		NFSTimeout:      2.5,
		NFSRetryTimeout: 0.5,
		NodeName:        "node1",
		InstanceID:      "abc",
	}
}

func newTestMonitor(t *testing.T, cfg QuotaMonitorConfig) *Monitor {
	m, err := NewMonitor(cfg, usedBySource)
	require.NoError(t, err)
	m.Now = func() time.Time { return testNow }
	m.Users = func() ([]scan.User, error) {
		return []scan.User{{Name: "alice", UID: 9}, {Name: "bob", UID: 2}, {Name: "carol", UID: 5}}, nil
	}
	return m
}

func TestCollectSkipsFailedFilesystem(t *testing.T) {
	m := newTestMonitor(t, testConfig(t))

	events, err := m.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, uint32(2), events[0].UID)
	assert.Equal(t, "bob", events[0].Name)
	assert.Equal(t, "alice", events[2].Name)
	for _, ev := range events {
		assert.Equal(t, "home", ev.Label)
		assert.Equal(t, "node1", ev.NodeName)
		assert.Equal(t, "abc", ev.InstanceID)
		assert.Equal(t, testNow, ev.Timestamp)
	}
}

func TestCollectThreshold(t *testing.T) {
	cfg := testConfig(t)
	cfg.ThresholdPercent = 80
	m := newTestMonitor(t, cfg)

	events, err := m.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Name)
}

func TestCollectUIDRange(t *testing.T) {
	cfg := testConfig(t)
	cfg.UIDRange = "1-3"
	m := newTestMonitor(t, cfg)
	m.Users = func() ([]scan.User, error) { return nil, errors.New("no passwd") }

	events, err := m.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "[1]", events[0].Name)
}

func TestCollectUnknownFilesystem(t *testing.T) {
	cfg := testConfig(t)
	cfg.Filesystems = []string{"home", "nope"}
	m := newTestMonitor(t, cfg)

	_, err := m.Collect(context.Background())
	assert.ErrorContains(t, err, "nope: not found in quota.conf")
}

func TestEventJSON(t *testing.T) {
	m := newTestMonitor(t, testConfig(t))
	events, err := m.Collect(context.Background())
	require.NoError(t, err)

	data, err := json.Marshal(events[:1])
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "home", decoded[0]["label"])
	assert.Equal(t, "node1", decoded[0]["node_name"])
	assert.Equal(t, float64(2), decoded[0]["uid"])
	assert.Equal(t, "under", decoded[0]["bytes"].(map[string]any)["state"])
}

func TestEventsDecodeInConsumer(t *testing.T) {
	m := newTestMonitor(t, testConfig(t))
	events, err := m.Collect(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, events)

	data, err := json.Marshal(events)
	require.NoError(t, err)

	c := quotastateconsumer.NewConsumer(quotastateconsumer.QuotaStateConsumerConfig{Prometheus: true, PrometheusPort: 9090})
	_, err = c.HandleMessage(data)
	require.NoError(t, err)
}

func TestReloadOnWrite(t *testing.T) {
	cfg := testConfig(t)
	cfg.WatchConf = true
	m := newTestMonitor(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.watchConf(ctx) }()

	// the watcher may not be registered yet, so keep rewriting
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(cfg.ConfPath, []byte("work:server3:/export/work\n"), 0o644)
		entries, err := m.entries()
		return err == nil && len(entries) == 1 && entries[0].Label == "work"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestValidate(t *testing.T) {
	cfg := testConfig(t)
	assert.NoError(t, Validate(cfg))

	bad := cfg
	bad.Interval = 0
	assert.Error(t, Validate(bad))

	bad = cfg
	bad.ThresholdPercent = 120
	assert.Error(t, Validate(bad))

	bad = cfg
	bad.Prometheus = true
	assert.Error(t, Validate(bad))
	bad.PrometheusPort = 9090
	assert.NoError(t, Validate(bad))

	bad = cfg
	bad.NatsURL = "nats://localhost:4222"
	bad.NatsSubject = ""
	assert.Error(t, Validate(bad))

	bad = cfg
	bad.ConfPath = "-"
	bad.WatchConf = true
	assert.Error(t, Validate(bad))

	bad = cfg
	bad.NFSRetryTimeout = 5
	assert.Error(t, Validate(bad))
}
