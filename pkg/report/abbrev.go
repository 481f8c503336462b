// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"

	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
)

// Abbrev formats a size given in kilobytes. Values of 1000 or more of a
// unit roll over to the next unit, so the result never exceeds "999.9G".
func Abbrev(kb float64) string {
	switch {
	case kb >= 1000*1024*1024:
		return fmt.Sprintf("%.1fT", kb/(1024*1024*1024))
	case kb >= 1000*1024:
		return fmt.Sprintf("%.1fG", kb/(1024*1024))
	case kb >= 1000:
		return fmt.Sprintf("%.1fM", kb/1024)
	case kb > 0:
		return fmt.Sprintf("%.1fK", kb)
	default:
		return "-0-"
	}
}

// SizeToString abbreviates a size in bytes.
func SizeToString(bytes uint64) string {
	return Abbrev(float64(bytes) / 1024)
}

const notStartedGrace = "[7 days]"

// GraceString describes the grace period of an over-quota usage, or
// returns "" when no grace applies. The real grace length of an unstarted
// timer is known only to the server; "[7 days]" stands in for it.
func GraceString(u quota.Usage) string {
	switch u.State {
	case quota.NotStarted:
		return notStartedGrace
	case quota.Expired:
		return "expired"
	case quota.GraceActive:
		return days(u.SecondsLeft)
	default:
		return ""
	}
}

func days(secs uint64) string {
	d := fmt.Sprintf("%.1f", float64(secs)/(60*60*24))
	if d == "1.0" {
		return d + " day"
	}
	return d + " days"
}
