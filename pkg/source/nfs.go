// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cobaltcore-dev/nfsquota/pkg/conf"
	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
	"github.com/cobaltcore-dev/nfsquota/pkg/rpc"
)

// QuotaGetter is the rquota call the NFS adapter depends on.
type QuotaGetter interface {
	GetQuota(ctx context.Context, host, path string, uid uint32) (*rpc.Rquota, error)
}

// NFS queries rpc.rquotad on the entry's server.
type NFS struct {
	opts Options
	// Dial returns a getter authenticating as uid.
	Dial func(uid uint32) (QuotaGetter, error)
}

func NewNFS(opts Options) *NFS {
	n := &NFS{opts: opts}
	n.Dial = func(uid uint32) (QuotaGetter, error) {
		c, err := rpc.NewClient(opts.Hostname, uid, uint32(opts.GID), opts.Timeout, opts.RetryTimeout)
		if err != nil {
			return nil, err
		}
		return rpc.NewRquotaClient(c), nil
	}
	return n
}

func (n *NFS) Query(ctx context.Context, e conf.Entry, uid uint32) (*quota.Record, error) {
	loc := e.Location
	if n.opts.EUID != 0 && uint32(n.opts.EUID) != uid {
		return nil, fmt.Errorf("only root can query someone else's quota: %w", ErrPermission)
	}

	g, err := n.Dial(uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}
	rq, err := g.GetQuota(ctx, loc.Host, loc.Path, uid)
	switch {
	case errors.Is(err, rpc.ErrNoQuota):
		return nil, fmt.Errorf("rquota %s: %w", loc, ErrNoQuota)
	case errors.Is(err, rpc.ErrPermission):
		return nil, fmt.Errorf("rquota %s: %w", loc, ErrPermission)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", loc.Host, err)
	}

	log.Debug().
		Str("location", loc.String()).
		Int32("bsize", rq.BSize).
		Uint32("curblocks", rq.CurBlocks).
		Uint32("bsoftlimit", rq.BSoftLimit).
		Uint32("bhardlimit", rq.BHardLimit).
		Uint32("btimeleft", rq.BTimeLeft).
		Uint32("curfiles", rq.CurFiles).
		Uint32("fsoftlimit", rq.FSoftLimit).
		Uint32("fhardlimit", rq.FHardLimit).
		Uint32("ftimeleft", rq.FTimeLeft).
		Msg("rquota_reply")

	return nfsRecord(e, uid, rq, n.opts.Quirks, n.opts.now())
}

// nfsRecord converts a GETQUOTA reply into a classified record.
func nfsRecord(e conf.Entry, uid uint32, rq *rpc.Rquota, q quota.Quirks, now time.Time) (*quota.Record, error) {
	if rq.BSize <= 0 {
		return nil, fmt.Errorf("rquota %s: bad block size %d", e.Location, rq.BSize)
	}
	l := quota.NormalizeLimits(q, quota.Limits{
		BlockSoft: rq.BSoftLimit,
		BlockHard: rq.BHardLimit,
		FileSoft:  rq.FSoftLimit,
		FileHard:  rq.FHardLimit,
	})
	bsize := uint64(rq.BSize)

	r := quota.NewRecord(e, uid)
	r.Bytes = quota.NewUsage(uint64(rq.CurBlocks)*bsize, uint64(l.BlockSoft)*bsize, uint64(l.BlockHard)*bsize,
		quota.NFSGrace(rq.BTimeLeft, now), now)
	r.Files = quota.NewUsage(uint64(rq.CurFiles), uint64(l.FileSoft), uint64(l.FileHard),
		quota.NFSGrace(rq.FTimeLeft, now), now)
	return r, nil
}
