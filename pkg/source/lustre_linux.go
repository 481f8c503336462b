// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package source

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	lustreQGetQuota = 0x800007
	userQuota       = 0

	// _IOWR('f', 162, struct ifQuotactl)
	llIocQuotactl = 0xc0000000 | uintptr(unsafe.Sizeof(ifQuotactl{}))<<16 | 'f'<<8 | 162
)

type obdDqinfo struct {
	BGrace uint64
	IGrace uint64
	Flags  uint32
	Valid  uint32
}

type ifQuotactl struct {
	Cmd     uint32
	Type    uint32
	ID      uint32
	Stat    uint32
	Valid   uint32
	Idx     uint32
	Dqinfo  obdDqinfo
	Dqblk   Dqblk
	ObdType [16]byte
	ObdUUID [40]byte
}

func quotactl(mount string, uid uint32) (*Dqblk, error) {
	fd, err := unix.Open(mount, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)

	q := ifQuotactl{Cmd: lustreQGetQuota, Type: userQuota, ID: uid}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), llIocQuotactl, uintptr(unsafe.Pointer(&q))); errno != 0 {
		return nil, errno
	}
	d := q.Dqblk
	return &d, nil
}
