// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"time"

	"github.com/cobaltcore-dev/nfsquota/pkg/conf"
)

// Usage is one resource dimension (bytes or files) of a quota. Zero limits
// mean no limit. SecondsLeft is only set when State is GraceActive.
type Usage struct {
	Used        uint64 `json:"used"`
	Soft        uint64 `json:"soft_limit"`
	Hard        uint64 `json:"hard_limit"`
	SecondsLeft uint64 `json:"seconds_left,omitempty"`
	State       State  `json:"state"`
}

// NewUsage classifies used against the limits and returns the populated Usage.
func NewUsage(used, soft, hard uint64, g Grace, now time.Time) Usage {
	u := Usage{Used: used, Soft: soft, Hard: hard}
	u.State, u.SecondsLeft = Classify(used, soft, hard, g, now)
	return u
}

// HasLimit reports whether either limit is set.
func (u Usage) HasLimit() bool {
	return u.Soft != 0 || u.Hard != 0
}

// OverThreshold reports whether usage has reached pct percent of the hard
// limit. A zero percentage or unset hard limit never triggers.
func (u Usage) OverThreshold(pct int) bool {
	if pct <= 0 || u.Hard == 0 {
		return false
	}
	return float64(u.Used) >= float64(u.Hard)*(float64(pct)/100.0)
}

// Record is one user's usage of one filesystem.
type Record struct {
	UID       uint32        `json:"uid"`
	Name      string        `json:"name,omitempty"`
	Label     string        `json:"label"`
	Location  conf.Location `json:"location"`
	Threshold int           `json:"threshold,omitempty"`
	Bytes     Usage         `json:"bytes"`
	Files     Usage         `json:"files"`
}

// NewRecord returns an unpopulated record for uid on the filesystem e.
func NewRecord(e conf.Entry, uid uint32) *Record {
	return &Record{
		UID:       uid,
		Label:     e.Label,
		Location:  e.Location,
		Threshold: e.Threshold,
	}
}

// Event is a record as published by a monitoring node.
type Event struct {
	Record
	NodeName   string    `json:"node_name"`
	InstanceID string    `json:"instance_id"`
	Timestamp  time.Time `json:"timestamp"`
}
