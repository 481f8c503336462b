// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package quota

import "github.com/rs/zerolog/log"

// NetAppNoQuota is what NetApp filers put in a limit field instead of 0.
const NetAppNoQuota = 0xffffffff

// Quirks selects workarounds for servers that stray from rquota semantics.
type Quirks struct {
	// NetApp rewrites an all-ones 32-bit limit to 0.
	NetApp bool
	// DEC rewrites 2-block soft and hard block limits to 0. OSF/1 servers
	// return them for users with no limit in the quota file.
	DEC bool
}

var DefaultQuirks = Quirks{NetApp: true}

// Limits holds the raw limit fields of an rquota reply.
type Limits struct {
	BlockSoft uint32
	BlockHard uint32
	FileSoft  uint32
	FileHard  uint32
}

// NormalizeLimits returns l with quirky "no limit" encodings replaced by 0.
func NormalizeLimits(q Quirks, l Limits) Limits {
	if q.NetApp {
		for _, f := range []struct {
			name string
			v    *uint32
		}{
			{"block_soft", &l.BlockSoft},
			{"block_hard", &l.BlockHard},
			{"file_soft", &l.FileSoft},
			{"file_hard", &l.FileHard},
		} {
			if *f.v == NetAppNoQuota {
				log.Debug().Str("field", f.name).Msg("quirk: netapp no-quota sentinel")
				*f.v = 0
			}
		}
	}
	if q.DEC && l.BlockSoft == 2 && l.BlockHard == 2 {
		log.Debug().Msg("quirk: 2 block limits (dec)")
		l.BlockSoft, l.BlockHard = 0, 0
	}
	return l
}
