// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package scan decides which (filesystem, uid) pairs to query and fills a
// quota.Store with the results.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/cobaltcore-dev/nfsquota/pkg/conf"
	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
	"github.com/cobaltcore-dev/nfsquota/pkg/source"
)

var ErrNoEntry = errors.New("no matching filesystem in quota.conf")

// Scanner queries sequentially and inserts successful results into Store.
// Failed queries are reported to OnError and skipped.
type Scanner struct {
	Source source.Source
	Store  *quota.Store
	// Limiter paces queries when set.
	Limiter *rate.Limiter
	// Lookup resolves display names. Records keep an empty name when nil.
	Lookup  func(uid uint32) (string, bool)
	OnError func(e conf.Entry, uid uint32, err error)
	// OnQuery is called after every query, successful or not.
	OnQuery func()
}

func (s *Scanner) query(ctx context.Context, e conf.Entry, uid uint32) (*quota.Record, error) {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	r, err := s.Source.Query(ctx, e, uid)
	if s.OnQuery != nil {
		s.OnQuery()
	}
	if err != nil {
		log.Debug().Err(err).Str("filesystem", e.Label).Uint32("uid", uid).Msg("quota_query_failed")
		if s.OnError != nil {
			s.OnError(e, uid, err)
		}
		return nil, err
	}
	return r, nil
}

// add queries uid on e unless the store already has it. fallback is the
// display name used when Lookup does not know uid.
func (s *Scanner) add(ctx context.Context, e conf.Entry, uid uint32, fallback string) error {
	if s.Store.ContainsUID(uid) {
		return nil
	}
	r, err := s.query(ctx, e, uid)
	if err != nil {
		return ctx.Err()
	}
	if s.Lookup != nil {
		if name, ok := s.Lookup(uid); ok {
			r.Name = name
		} else {
			r.Name = fallback
		}
	}
	s.Store.Insert(r)
	return nil
}

// AllFilesystems queries uid on every entry, skipping the ones that fail.
func (s *Scanner) AllFilesystems(ctx context.Context, entries []conf.Entry, uid uint32) error {
	for _, e := range entries {
		r, err := s.query(ctx, e, uid)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		s.Store.Insert(r)
	}
	return nil
}

// Login queries only the filesystem holding home. Unlike the other scans a
// failure here is returned.
func (s *Scanner) Login(ctx context.Context, cfg *conf.Config, home string, uid uint32) error {
	e, ok := cfg.ContainingDir(home)
	if !ok {
		return fmt.Errorf("%s: %w", home, ErrNoEntry)
	}
	r, err := s.query(ctx, e, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", e.Label, err)
	}
	s.Store.Insert(r)
	return nil
}

// PasswdScan queries every user in users admitted by filter.
func (s *Scanner) PasswdScan(ctx context.Context, e conf.Entry, users []User, filter UIDSet) error {
	for _, u := range users {
		if !filter.Contains(u.UID) {
			continue
		}
		if err := s.add(ctx, e, u.UID, u.Name); err != nil {
			return err
		}
	}
	return nil
}

// DirScan queries the owner of every top level directory entry of the
// filesystem's path admitted by filter.
func (s *Scanner) DirScan(ctx context.Context, e conf.Entry, filter UIDSet) error {
	dir := e.Location.Path
	ents, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", dir, err)
	}
	for _, de := range ents {
		var st unix.Stat_t
		if err := unix.Stat(filepath.Join(dir, de.Name()), &st); err != nil {
			continue
		}
		if !filter.Contains(st.Uid) {
			continue
		}
		if err := s.add(ctx, e, st.Uid, "["+de.Name()+"]"); err != nil {
			return err
		}
	}
	return nil
}

// UIDScan queries every uid in uids.
func (s *Scanner) UIDScan(ctx context.Context, e conf.Entry, uids []uint32) error {
	for _, uid := range uids {
		if err := s.add(ctx, e, uid, "["+strconv.FormatUint(uint64(uid), 10)+"]"); err != nil {
			return err
		}
	}
	return nil
}
