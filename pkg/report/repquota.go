// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
)

const (
	repRowFmt       = "%-10s %-6d %-10s %-10s %-10s %-10s %-10d %-10d %-10d %s\n"
	repUsageOnlyFmt = "%-10s %-6d %-10s %d\n"
)

// FSReport renders the per-filesystem, per-uid report of repquota.
// Byte values are shown in BlockSize units, or abbreviated when Human is set.
type FSReport struct {
	Out       io.Writer
	BlockSize uint64
	Human     bool
	UsageOnly bool
}

// DefaultBlockSize is the unit of repquota byte columns.
const DefaultBlockSize = 1024 * 1024

// ParseBlockSize parses a size with an optional b, k, m or g suffix.
func ParseBlockSize(s string) (uint64, error) {
	i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	num, suffix := s, ""
	if i >= 0 {
		num, suffix = s[:i], s[i:]
	}
	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing blocksize %q: %w", s, err)
	}
	switch strings.ToLower(suffix) {
	case "", "b":
	case "k":
		n *= 1024
	case "m":
		n *= 1024 * 1024
	case "g":
		n *= 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("error parsing blocksize %q: bad suffix", s)
	}
	if n == 0 {
		return 0, fmt.Errorf("error parsing blocksize %q: must be positive", s)
	}
	return n, nil
}

func (f *FSReport) Heading(fs string) {
	if f.Human {
		fmt.Fprintf(f.Out, "Quota report for %s\n", fs)
	} else {
		fmt.Fprintf(f.Out, "Quota report for %s (blocksize %s)\n", fs, SizeToString(f.BlockSize))
	}
	f.Columns()
}

// Columns prints the column header line.
func (f *FSReport) Columns() {
	if f.UsageOnly {
		fmt.Fprintf(f.Out, "%-10s %-6s %-10s %s\n", "User", "UID", "Space", "Files")
		return
	}
	fmt.Fprintf(f.Out, "%-10s %-6s %-10s %-10s %-10s %-10s %-10s %-10s %-10s %s\n",
		"User", "UID", "Space", "Quota", "Limit", "Grace", "Files", "Quota", "Limit", "Grace")
}

func (f *FSReport) size(bytes uint64) string {
	if f.Human {
		return SizeToString(bytes)
	}
	bs := f.BlockSize
	if bs == 0 {
		bs = 1
	}
	return strconv.FormatUint(bytes/bs, 10)
}

func userName(r *quota.Record) string {
	if r.Name != "" {
		return r.Name
	}
	return strconv.FormatUint(uint64(r.UID), 10)
}

// Row prints one record.
func (f *FSReport) Row(r *quota.Record) error {
	if f.UsageOnly {
		_, err := fmt.Fprintf(f.Out, repUsageOnlyFmt, userName(r), r.UID, f.size(r.Bytes.Used), r.Files.Used)
		return err
	}
	_, err := fmt.Fprintf(f.Out, repRowFmt,
		userName(r), r.UID,
		f.size(r.Bytes.Used), f.size(r.Bytes.Soft), f.size(r.Bytes.Hard), GraceString(r.Bytes),
		r.Files.Used, r.Files.Soft, r.Files.Hard, GraceString(r.Files))
	return err
}
