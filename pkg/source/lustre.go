// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/disk"

	"github.com/cobaltcore-dev/nfsquota/pkg/conf"
	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
)

// QuotaBlockSize is the unit of Lustre block limits.
const QuotaBlockSize = 1024

const lustreFSType = "lustre"

// Dqblk is the user quota block returned by the Lustre quotactl.
// CurSpace is in bytes, block limits in QuotaBlockSize units, and BTime
// and ITime are absolute grace expiries in epoch seconds (0 when unset).
type Dqblk struct {
	BHardLimit uint64
	BSoftLimit uint64
	CurSpace   uint64
	IHardLimit uint64
	ISoftLimit uint64
	CurInodes  uint64
	BTime      uint64
	ITime      uint64
	Valid      uint32
	Padding    uint32
}

// Lustre reads quotas from a locally mounted Lustre filesystem.
type Lustre struct {
	opts Options
	// Partitions lists mounted filesystems.
	Partitions func() ([]disk.PartitionStat, error)
	// Quotactl issues the GETQUOTA control call on mount.
	Quotactl func(mount string, uid uint32) (*Dqblk, error)
}

func NewLustre(opts Options) *Lustre {
	return &Lustre{
		opts:       opts,
		Partitions: func() ([]disk.PartitionStat, error) { return disk.Partitions(true) },
		Quotactl:   quotactl,
	}
}

func (l *Lustre) Query(ctx context.Context, e conf.Entry, uid uint32) (*quota.Record, error) {
	mount := e.Location.Path
	if err := l.checkMounted(mount); err != nil {
		return nil, err
	}
	dqb, err := l.Quotactl(mount, uid)
	if err != nil {
		return nil, fmt.Errorf("quotactl %s: %w", mount, err)
	}
	return lustreRecord(e, uid, dqb, l.opts.now()), nil
}

func (l *Lustre) checkMounted(mount string) error {
	parts, err := l.Partitions()
	if err != nil {
		return fmt.Errorf("%s: list mounts: %w", mount, err)
	}
	want := filepath.Clean(mount)
	for _, p := range parts {
		if filepath.Clean(p.Mountpoint) != want {
			continue
		}
		if p.Fstype == lustreFSType {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", mount, ErrNotMounted)
}

// lustreRecord converts a quota block into a classified record. No quirks
// apply to Lustre.
func lustreRecord(e conf.Entry, uid uint32, d *Dqblk, now time.Time) *quota.Record {
	r := quota.NewRecord(e, uid)
	r.Bytes = quota.NewUsage(d.CurSpace, d.BSoftLimit*QuotaBlockSize, d.BHardLimit*QuotaBlockSize,
		quota.LustreGrace(d.BTime), now)
	r.Files = quota.NewUsage(d.CurInodes, d.ISoftLimit, d.IHardLimit,
		quota.LustreGrace(d.ITime), now)
	return r
}
