// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type GlobalConfig struct {
	NatsURL         string  `mapstructure:"nats_url"`
	ConfPath        string  `mapstructure:"conf_path"`
	NFSTimeout      float64 `mapstructure:"nfs_timeout"`
	NFSRetryTimeout float64 `mapstructure:"nfs_retry_timeout"`
	NodeName        string  `mapstructure:"node_name"`
	InstanceID      string  `mapstructure:"instance_id"`
}

type ProducerConfig struct {
	Name     string                 `mapstructure:"name"`
	Type     string                 `mapstructure:"type"`
	Settings map[string]interface{} `mapstructure:"settings"`
}

type Config struct {
	Global    GlobalConfig     `mapstructure:"global"`
	Producers []ProducerConfig `mapstructure:"producers"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("global.conf_path", "/etc/quota.conf")
	v.SetDefault("global.nfs_timeout", 2.5)
	v.SetDefault("global.nfs_retry_timeout", 0.5)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	err := v.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &config, nil
}

func GetStringSetting(settings map[string]interface{}, key, defaultValue string) string {
	if value, ok := settings[key].(string); ok {
		return value
	}
	return defaultValue
}

func GetIntSetting(settings map[string]interface{}, key string, defaultValue int) int {
	if value, ok := settings[key].(int); ok {
		return value
	}
	return defaultValue
}

func GetBoolSetting(settings map[string]interface{}, key string, defaultValue bool) bool {
	if value, ok := settings[key].(bool); ok {
		return value
	}
	return defaultValue
}

// GetFloat64Setting also accepts whole numbers, which YAML decodes as int.
func GetFloat64Setting(settings map[string]interface{}, key string, defaultValue float64) float64 {
	switch value := settings[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	}
	return defaultValue
}

func GetStringSliceSetting(settings map[string]interface{}, key string, defaultValue []string) []string {
	if value, ok := settings[key].([]interface{}); ok {
		var result []string
		for _, v := range value {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return defaultValue
}
