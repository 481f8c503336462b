// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cobaltcore-dev/nfsquota/pkg/conf"
)

var (
	confPath string
	confDirs []string
	confJSON bool
)

var confCmd = &cobra.Command{
	Use:   "conf [label ...]",
	Short: "Print quota.conf entries or resolve labels against it",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := confPath
		if !cmd.Flags().Changed("config") {
			path = getEnv("QUOTA_CONF", path)
		}
		cfg, err := conf.Load(path)
		if err != nil {
			return err
		}
		return runConf(cmd.OutOrStdout(), cfg, args, confDirs, confJSON)
	},
}

// runConf prints every entry when no labels or directories are given.
// Otherwise each key is printed with the entry it resolves to, labels by
// exact match and directories by the filesystem that contains them.
func runConf(out io.Writer, cfg *conf.Config, labels, dirs []string, asJSON bool) error {
	if len(labels) == 0 && len(dirs) == 0 {
		if asJSON {
			return writeJSON(out, cfg.Entries)
		}
		for _, e := range cfg.Entries {
			fmt.Fprintln(out, formatEntry(e))
		}
		return nil
	}

	type resolved struct {
		Key   string      `json:"key"`
		Entry *conf.Entry `json:"entry"`
	}
	var results []resolved
	add := func(key string, e conf.Entry, ok bool) {
		r := resolved{Key: key}
		if ok {
			r.Entry = &e
		}
		results = append(results, r)
	}
	for _, l := range labels {
		e, ok := cfg.ByLabel(l)
		add(l, e, ok)
	}
	for _, d := range dirs {
		e, ok := cfg.ContainingDir(d)
		add(d, e, ok)
	}

	if asJSON {
		return writeJSON(out, results)
	}
	for _, r := range results {
		if r.Entry == nil {
			fmt.Fprintf(out, "%s: not found\n", r.Key)
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", r.Key, formatEntry(*r.Entry))
	}
	return nil
}

// formatEntry renders e in quota.conf syntax.
func formatEntry(e conf.Entry) string {
	return fmt.Sprintf("%s:%s:%d", e.Label, e.Location, e.Threshold)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	confCmd.Flags().StringVarP(&confPath, "config", "f", defaultConfPath, "Path to quota.conf, - for stdin")
	confCmd.Flags().StringSliceVar(&confDirs, "dir", nil, "Directory to resolve to its containing filesystem (repeatable)")
	confCmd.Flags().BoolVar(&confJSON, "json", false, "Print JSON")
}
