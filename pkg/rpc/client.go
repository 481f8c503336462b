// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout      = 2500 * time.Millisecond
	DefaultRetryTimeout = 500 * time.Millisecond

	maxDatagram = 8800
)

var ErrTimeout = errors.New("rpc: timed out")

// Client sends calls over UDP. Each call is retransmitted every
// RetryTimeout until a reply with a matching XID arrives or Timeout has
// elapsed in total.
type Client struct {
	Timeout      time.Duration
	RetryTimeout time.Duration
	Cred         OpaqueAuth
}

// NewClient returns a client that authenticates as uid/gid from machine
// with AUTH_UNIX.
func NewClient(machine string, uid, gid uint32, timeout, retry time.Duration) (*Client, error) {
	cred, err := NewUnixAuth(machine, uid, gid, nil)
	if err != nil {
		return nil, err
	}
	return &Client{Timeout: timeout, RetryTimeout: retry, Cred: cred}, nil
}

// Call invokes program/version/procedure at addr with args and decodes the
// results into result.
func (c *Client) Call(ctx context.Context, addr string, prog, vers, proc uint32, args, result any) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retry := c.RetryTimeout
	if retry <= 0 || retry > timeout {
		retry = timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	h := CallHeader{
		XID:        rand.Uint32(),
		MsgType:    MsgCall,
		RPCVersion: rpcVersion,
		Program:    prog,
		Version:    vers,
		Procedure:  proc,
		Cred:       c.Cred,
		Verf:       OpaqueAuth{Flavor: AuthNull, Body: []byte{}},
	}
	if h.Cred.Body == nil {
		h.Cred = OpaqueAuth{Flavor: AuthNull, Body: []byte{}}
	}
	msg, err := EncodeCall(&h, args)
	if err != nil {
		return err
	}

	deadline, _ := ctx.Deadline()
	buf := make([]byte, maxDatagram)
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			return fmt.Errorf("%s: %w", addr, ErrTimeout)
		}
		log.Debug().
			Str("addr", addr).
			Uint32("program", prog).
			Uint32("procedure", proc).
			Uint32("xid", h.XID).
			Int("attempt", attempt).
			Msg("rpc_call")
		if _, err := conn.Write(msg); err != nil {
			return fmt.Errorf("send to %s: %w", addr, err)
		}

		wait := time.Now().Add(retry)
		if wait.After(deadline) {
			wait = deadline
		}
		if err := conn.SetReadDeadline(wait); err != nil {
			return err
		}

		for {
			n, err := conn.Read(buf)
			if err != nil {
				if errors.Is(err, os.ErrDeadlineExceeded) {
					break
				}
				return fmt.Errorf("receive from %s: %w", addr, err)
			}
			if xid, ok := ReplyXID(buf[:n]); !ok || xid != h.XID {
				continue
			}
			return DecodeReply(buf[:n], result)
		}
	}
}
