// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package quotastateconsumer

type QuotaStateConsumerConfig struct {
	NatsURL          string
	NatsSubject      string
	Prometheus       bool
	PrometheusPort   int
	ThresholdPercent float64
	NodeName         string
	InstanceID       string
}
