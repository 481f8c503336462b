// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package rpc is a small ONC RPC v2 client (RFC 5531) over UDP, with the
// portmapper and rquota programs it needs to read NFS quotas.
package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"
)

const (
	MsgCall  = 0
	MsgReply = 1

	ReplyAccepted = 0
	ReplyDenied   = 1

	AcceptSuccess      = 0
	AcceptProgUnavail  = 1
	AcceptProgMismatch = 2
	AcceptProcUnavail  = 3
	AcceptGarbageArgs  = 4
	AcceptSystemErr    = 5

	AuthNull = 0
	AuthUnix = 1

	rpcVersion = 2
)

// CallHeader is the fixed part of every call, followed on the wire by the
// procedure arguments.
type CallHeader struct {
	XID        uint32
	MsgType    uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	Cred       OpaqueAuth
	Verf       OpaqueAuth
}

// OpaqueAuth is a credential or verifier; the body is interpreted per flavor.
type OpaqueAuth struct {
	Flavor uint32
	Body   []byte `xdr:"opaque"`
}

// UnixAuth is the AUTH_UNIX credential body.
type UnixAuth struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// replyHead is what precedes the accepted/denied arm of a reply.
type replyHead struct {
	XID        uint32
	MsgType    uint32
	ReplyState uint32
}

type acceptedHead struct {
	Verf       OpaqueAuth
	AcceptStat uint32
}

// NewUnixAuth encodes an AUTH_UNIX credential for the given machine name
// and ids.
func NewUnixAuth(machine string, uid, gid uint32, gids []uint32) (OpaqueAuth, error) {
	if gids == nil {
		gids = []uint32{}
	}
	body := UnixAuth{
		Stamp:       uint32(time.Now().Unix()),
		MachineName: machine,
		UID:         uid,
		GID:         gid,
		GIDs:        gids,
	}
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &body); err != nil {
		return OpaqueAuth{}, fmt.Errorf("marshal auth_unix: %w", err)
	}
	return OpaqueAuth{Flavor: AuthUnix, Body: buf.Bytes()}, nil
}

// ParseUnixAuth decodes an AUTH_UNIX credential body.
func ParseUnixAuth(body []byte) (*UnixAuth, error) {
	auth := &UnixAuth{}
	if _, err := xdr.Unmarshal(bytes.NewReader(body), auth); err != nil {
		return nil, fmt.Errorf("unmarshal auth_unix: %w", err)
	}
	return auth, nil
}

// EncodeCall serializes a call header followed by args.
func EncodeCall(h *CallHeader, args any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, h); err != nil {
		return nil, fmt.Errorf("marshal call header: %w", err)
	}
	if args != nil {
		if _, err := xdr.Marshal(&buf, args); err != nil {
			return nil, fmt.Errorf("marshal call args: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// ReplyXID returns the transaction id of a reply datagram without decoding
// the rest of it.
func ReplyXID(msg []byte) (uint32, bool) {
	if len(msg) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(msg[:4]), true
}

// DecodeReply checks the reply header and decodes the procedure results into
// result. A *[]byte result receives the raw result bytes instead. Denied and
// unsuccessful replies are returned as *ReplyError.
func DecodeReply(msg []byte, result any) error {
	r := bytes.NewReader(msg)

	var head replyHead
	if _, err := xdr.Unmarshal(r, &head); err != nil {
		return fmt.Errorf("unmarshal reply header: %w", err)
	}
	if head.MsgType != MsgReply {
		return fmt.Errorf("expected REPLY (1), got %d", head.MsgType)
	}
	if head.ReplyState != ReplyAccepted {
		return &ReplyError{Denied: true}
	}

	var acc acceptedHead
	if _, err := xdr.Unmarshal(r, &acc); err != nil {
		return fmt.Errorf("unmarshal accepted reply: %w", err)
	}
	if acc.AcceptStat != AcceptSuccess {
		return &ReplyError{AcceptStat: acc.AcceptStat}
	}
	if result == nil {
		return nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = msg[len(msg)-r.Len():]
		return nil
	}
	if _, err := xdr.Unmarshal(r, result); err != nil {
		return fmt.Errorf("unmarshal results: %w", err)
	}
	return nil
}

// EncodeReply builds a successful reply carrying results. A []byte result
// is appended as is.
func EncodeReply(xid uint32, results any) ([]byte, error) {
	var buf bytes.Buffer
	head := replyHead{XID: xid, MsgType: MsgReply, ReplyState: ReplyAccepted}
	if _, err := xdr.Marshal(&buf, &head); err != nil {
		return nil, err
	}
	acc := acceptedHead{Verf: OpaqueAuth{Flavor: AuthNull, Body: []byte{}}}
	if _, err := xdr.Marshal(&buf, &acc); err != nil {
		return nil, err
	}
	switch res := results.(type) {
	case nil:
	case []byte:
		buf.Write(res)
	default:
		if _, err := xdr.Marshal(&buf, res); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeCall parses a call header and returns it along with the bytes of
// the procedure arguments.
func DecodeCall(msg []byte) (*CallHeader, []byte, error) {
	r := bytes.NewReader(msg)
	h := &CallHeader{}
	if _, err := xdr.Unmarshal(r, h); err != nil {
		return nil, nil, fmt.Errorf("unmarshal call: %w", err)
	}
	if h.MsgType != MsgCall {
		return nil, nil, fmt.Errorf("expected CALL (0), got %d", h.MsgType)
	}
	return h, msg[len(msg)-r.Len():], nil
}

// ReplyError is a reply that was denied or did not succeed.
type ReplyError struct {
	Denied     bool
	AcceptStat uint32
}

func (e *ReplyError) Error() string {
	if e.Denied {
		return "rpc: call denied"
	}
	switch e.AcceptStat {
	case AcceptProgUnavail:
		return "rpc: program unavailable"
	case AcceptProgMismatch:
		return "rpc: program version mismatch"
	case AcceptProcUnavail:
		return "rpc: procedure unavailable"
	case AcceptGarbageArgs:
		return "rpc: garbage arguments"
	case AcceptSystemErr:
		return "rpc: system error"
	default:
		return fmt.Sprintf("rpc: accept status %d", e.AcceptStat)
	}
}
