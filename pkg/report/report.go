// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io"

	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
)

const (
	hdrFilesystem = "Filesystem     "
	hdrBytes      = "used   quota  limit    timeleft  "
	hdrFiles      = "files  quota  limit    timeleft"

	// MoreInfo is printed once after a short report that warned about anything.
	MoreInfo = "Run quota -v for more detailed information."
)

// Printer renders per-user quota reports. With RealPath set, filesystems
// are shown as host:path instead of their configured label.
type Printer struct {
	Out      io.Writer
	RealPath bool
}

func (p *Printer) name(r *quota.Record) string {
	if p.RealPath {
		return r.Location.String()
	}
	return r.Label
}

// Heading prints the long report header for user.
func (p *Printer) Heading(user string) {
	fmt.Fprintf(p.Out, "Disk quotas for %s:\n", user)
	fmt.Fprintf(p.Out, "%s%s%s\n", hdrFilesystem, hdrBytes, hdrFiles)
}

// Long prints every field of r on one line, plus a warning line when
// byte usage has crossed the entry's threshold.
func (p *Printer) Long(r *quota.Record) error {
	fs := p.name(r)
	w := p.Out

	fmt.Fprintf(w, "%-15s", fs)
	if len(fs) > 14 {
		fmt.Fprintf(w, "\n%-15s", "")
	}
	fmt.Fprintf(w, "%-7s", SizeToString(r.Bytes.Used))
	if r.Bytes.HasLimit() {
		fmt.Fprintf(w, "%-7s%-9s%-10s", SizeToString(r.Bytes.Soft), SizeToString(r.Bytes.Hard), GraceString(r.Bytes))
	} else {
		fmt.Fprintf(w, "%-7s%-9s%-10s", "n/a", "n/a", "")
	}

	fmt.Fprintf(w, "%-7d", r.Files.Used)
	if r.Files.HasLimit() {
		fmt.Fprintf(w, "%-7d%-9d%s\n", r.Files.Soft, r.Files.Hard, GraceString(r.Files))
	} else {
		fmt.Fprintf(w, "%-7s%-9s\n", "n/a", "n/a")
	}

	if r.Bytes.OverThreshold(r.Threshold) {
		fmt.Fprintf(w, "***  usage on %s has exceeded %d%% of quota!\n", fs, r.Threshold)
	}
	return nil
}

// Short prints only warnings for r and returns how many lines it printed.
func (p *Printer) Short(r *quota.Record) int {
	fs := p.name(r)
	w := p.Out
	n := 0

	if r.Bytes.State.Over() {
		n++
		fmt.Fprintf(w, "Over disk quota on %s, ", fs)
		if r.Bytes.State == quota.Expired {
			fmt.Fprintf(w, "time limit expired\n")
		} else {
			fmt.Fprintf(w, "remove %s within %s\n", SizeToString(excess(r.Bytes)), GraceString(r.Bytes))
		}
	} else if r.Bytes.OverThreshold(r.Threshold) {
		n++
		fmt.Fprintf(w, "Warning: usage on %s has exceeded %d%% of quota.\n", fs, r.Threshold)
	}

	if r.Files.State.Over() {
		n++
		fmt.Fprintf(w, "Over file quota on %s, ", fs)
		if r.Files.State == quota.Expired {
			fmt.Fprintf(w, "time limit expired\n")
		} else {
			fmt.Fprintf(w, "remove %d files within %s\n", excess(r.Files), GraceString(r.Files))
		}
	}
	return n
}

// excess is how much must be removed to get back under the soft limit.
func excess(u quota.Usage) uint64 {
	if u.Soft == 0 || u.Used < u.Soft {
		return 0
	}
	return u.Used - u.Soft + 1
}

// Raw dumps every field of r, one per line.
func (p *Printer) Raw(r *quota.Record) error {
	w := p.Out
	fmt.Fprintf(w, "%s (%s) uid=%d\n", r.Label, r.Location, r.UID)
	for _, d := range []struct {
		name string
		u    quota.Usage
	}{{"bytes", r.Bytes}, {"files", r.Files}} {
		fmt.Fprintf(w, "  %s_used     %d\n", d.name, d.u.Used)
		fmt.Fprintf(w, "  %s_softlim  %d\n", d.name, d.u.Soft)
		fmt.Fprintf(w, "  %s_hardlim  %d\n", d.name, d.u.Hard)
		fmt.Fprintf(w, "  %s_state    %s\n", d.name, d.u.State)
		if d.u.State == quota.GraceActive {
			fmt.Fprintf(w, "  %s_secleft  %d\n", d.name, d.u.SecondsLeft)
		}
	}
	return nil
}
