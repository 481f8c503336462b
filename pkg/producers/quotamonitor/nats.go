// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package quotamonitor

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
)

func PublishToNATS(nc *nats.Conn, events []quota.Event, cfg QuotaMonitorConfig) error {
	data, err := json.Marshal(events)
	if err != nil {
		return err
	}

	return nc.Publish(cfg.NatsSubject, data)
}
