// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package source fetches one user's quota on one filesystem, either over
// rquota RPC or from a local Lustre mount, and returns it as a classified
// quota.Record.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cobaltcore-dev/nfsquota/pkg/conf"
	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
	"github.com/cobaltcore-dev/nfsquota/pkg/rpc"
)

var (
	ErrNoQuota      = errors.New("no quota")
	ErrPermission   = errors.New("permission denied")
	ErrNotMounted   = errors.New("not mounted")
	ErrNotSupported = errors.New("not supported on this platform")
)

// Source returns the fully populated record for uid on e, or an error.
// A record is never returned together with an error.
type Source interface {
	Query(ctx context.Context, e conf.Entry, uid uint32) (*quota.Record, error)
}

// Func adapts a function to Source.
type Func func(ctx context.Context, e conf.Entry, uid uint32) (*quota.Record, error)

func (f Func) Query(ctx context.Context, e conf.Entry, uid uint32) (*quota.Record, error) {
	return f(ctx, e, uid)
}

// Options carries the per-process settings the adapters need.
type Options struct {
	Hostname     string
	EUID         int
	GID          int
	Timeout      time.Duration
	RetryTimeout time.Duration
	Quirks       quota.Quirks
	Now          func() time.Time
}

// DefaultOptions describes the calling process.
func DefaultOptions() Options {
	host, _ := os.Hostname()
	return Options{
		Hostname:     host,
		EUID:         os.Geteuid(),
		GID:          os.Getgid(),
		Timeout:      rpc.DefaultTimeout,
		RetryTimeout: rpc.DefaultRetryTimeout,
		Quirks:       quota.DefaultQuirks,
		Now:          time.Now,
	}
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Dispatcher routes each query to the adapter for the entry's kind.
type Dispatcher struct {
	NFS    Source
	Lustre Source
}

// New returns a Dispatcher with the real NFS and Lustre adapters.
func New(opts Options) *Dispatcher {
	return &Dispatcher{
		NFS:    NewNFS(opts),
		Lustre: NewLustre(opts),
	}
}

func (d *Dispatcher) Query(ctx context.Context, e conf.Entry, uid uint32) (*quota.Record, error) {
	switch e.Location.Kind {
	case conf.KindNFS:
		return d.NFS.Query(ctx, e, uid)
	case conf.KindLustre:
		return d.Lustre.Query(ctx, e, uid)
	default:
		return nil, fmt.Errorf("%s: unknown filesystem kind %s", e.Label, e.Location.Kind)
	}
}
