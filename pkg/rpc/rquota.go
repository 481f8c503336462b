// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	xdr "github.com/rasky/go-xdr/xdr2"
)

const (
	ProgramRquota   = 100011
	VersionRquota   = 1
	ProcGetQuota    = 1
	ProcGetActQuota = 2

	QuotaOK      = 1
	QuotaNoQuota = 2
	QuotaEPerm   = 3
)

var (
	ErrNoQuota    = errors.New("rquota: no quota")
	ErrPermission = errors.New("rquota: permission denied")
)

// GetQuotaArgs are the arguments of RQUOTAPROC_GETQUOTA.
type GetQuotaArgs struct {
	Path string
	UID  int32
}

// Rquota is the quota block of a successful reply. Block values are in
// units of BSize bytes; time left values are seconds remaining as computed
// by the server, and may be negative when read as int32.
type Rquota struct {
	BSize      int32
	Active     bool
	BHardLimit uint32
	BSoftLimit uint32
	CurBlocks  uint32
	FHardLimit uint32
	FSoftLimit uint32
	CurFiles   uint32
	BTimeLeft  uint32
	FTimeLeft  uint32
}

// RquotaClient reads quotas from rpc.rquotad.
type RquotaClient struct {
	Client *Client
	PM     *Portmapper
}

// NewRquotaClient returns a client whose portmapper lookups share c.
func NewRquotaClient(c *Client) *RquotaClient {
	return &RquotaClient{Client: c, PM: &Portmapper{Client: c}}
}

// GetQuota queries host for uid's quota on the exported path.
func (q *RquotaClient) GetQuota(ctx context.Context, host, path string, uid uint32) (*Rquota, error) {
	port, err := q.PM.GetPort(ctx, host, ProgramRquota, VersionRquota)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	args := GetQuotaArgs{Path: path, UID: int32(uid)}
	var raw []byte
	if err := q.Client.Call(ctx, addr, ProgramRquota, VersionRquota, ProcGetQuota, &args, &raw); err != nil {
		return nil, fmt.Errorf("rquota getquota %s:%s: %w", host, path, err)
	}
	return DecodeGetQuota(raw)
}

// DecodeGetQuota decodes a GETQUOTA result. The quota block is only present
// when the status is QuotaOK.
func DecodeGetQuota(b []byte) (*Rquota, error) {
	r := bytes.NewReader(b)
	var status uint32
	if _, err := xdr.Unmarshal(r, &status); err != nil {
		return nil, fmt.Errorf("unmarshal rquota status: %w", err)
	}
	switch status {
	case QuotaOK:
	case QuotaNoQuota:
		return nil, ErrNoQuota
	case QuotaEPerm:
		return nil, ErrPermission
	default:
		return nil, fmt.Errorf("rquota: unknown status %d", status)
	}
	q := &Rquota{}
	if _, err := xdr.Unmarshal(r, q); err != nil {
		return nil, fmt.Errorf("unmarshal rquota: %w", err)
	}
	return q, nil
}

// EncodeGetQuota is the server side of DecodeGetQuota.
func EncodeGetQuota(status uint32, q *Rquota) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &status); err != nil {
		return nil, err
	}
	if status == QuotaOK && q != nil {
		if _, err := xdr.Marshal(&buf, q); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
