// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package source

func quotactl(mount string, uid uint32) (*Dqblk, error) {
	return nil, ErrNotSupported
}
