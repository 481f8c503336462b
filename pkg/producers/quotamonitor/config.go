// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package quotamonitor

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

type QuotaMonitorConfig struct {
	ConfPath         string   `validate:"required"`
	Filesystems      []string `validate:"dive,required"`
	UIDRange         string
	NatsURL          string `validate:"omitempty,url"`
	NatsSubject      string `validate:"required_with=NatsURL"`
	UseNats          bool
	Prometheus       bool
	PrometheusPort   int     `validate:"omitempty,min=1,max=65535"`
	Interval         int     `validate:"min=1"`
	Rate             float64 `validate:"gte=0"`
	NFSTimeout       float64 `validate:"gt=0"`
	NFSRetryTimeout  float64 `validate:"gt=0"`
	ThresholdPercent float64 `validate:"gte=0,lte=100"`
	WatchConf        bool
	NodeName         string
	InstanceID       string
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks field constraints and the combinations the tags cannot express.
func Validate(cfg QuotaMonitorConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if cfg.Prometheus && cfg.PrometheusPort == 0 {
		return errors.New("prometheus port must be set when prometheus is enabled")
	}
	if cfg.WatchConf && cfg.ConfPath == "-" {
		return errors.New("cannot watch quota.conf read from stdin")
	}
	if cfg.NFSRetryTimeout > cfg.NFSTimeout {
		return errors.New("nfs retry timeout must not exceed nfs timeout")
	}
	return nil
}
