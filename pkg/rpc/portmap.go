// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

const (
	ProgramPortmap = 100000
	VersionPortmap = 2
	ProcGetPort    = 3
	PortmapPort    = 111

	ProtoTCP = 6
	ProtoUDP = 17
)

var ErrNotRegistered = errors.New("rpc: program not registered")

// Mapping is the portmapper's (program, version, protocol) → port entry.
type Mapping struct {
	Prog uint32
	Vers uint32
	Prot uint32
	Port uint32
}

// Portmapper resolves program ports on a host. Port overrides the
// portmapper's own port and is only set by tests.
type Portmapper struct {
	Client *Client
	Port   int
}

// GetPort asks the portmapper on host for the UDP port of prog/vers.
func (p *Portmapper) GetPort(ctx context.Context, host string, prog, vers uint32) (int, error) {
	port := p.Port
	if port == 0 {
		port = PortmapPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	args := Mapping{Prog: prog, Vers: vers, Prot: ProtoUDP}
	var res uint32
	if err := p.Client.Call(ctx, addr, ProgramPortmap, VersionPortmap, ProcGetPort, &args, &res); err != nil {
		return 0, fmt.Errorf("portmap getport %d/%d: %w", prog, vers, err)
	}
	if res == 0 {
		return 0, fmt.Errorf("%s: program %d version %d: %w", host, prog, vers, ErrNotRegistered)
	}
	return int(res), nil
}
