// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseUIDList parses a comma separated list of uids and inclusive
// ranges such as "0,100-200,500". Duplicates are kept and empty items are
// skipped, but an empty result is an error.
func ParseUIDList(s string) ([]uint32, error) {
	var out []uint32
	for _, tok := range strings.Split(s, ",") {
		if tok == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(tok, "-")
		first, err := strconv.ParseUint(lo, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad uid %q in %q", tok, s)
		}
		if !isRange {
			out = append(out, uint32(first))
			continue
		}
		last, err := strconv.ParseUint(hi, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad uid range %q in %q", tok, s)
		}
		for u := first; u <= last; u++ {
			out = append(out, uint32(u))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty uid list %q", s)
	}
	return out, nil
}

// UIDSet filters uids. A nil set admits every uid.
type UIDSet map[uint32]struct{}

func NewUIDSet(uids []uint32) UIDSet {
	set := make(UIDSet, len(uids))
	for _, u := range uids {
		set[u] = struct{}{}
	}
	return set
}

func (s UIDSet) Contains(uid uint32) bool {
	if s == nil {
		return true
	}
	_, ok := s[uid]
	return ok
}

// User is one password file entry.
type User struct {
	Name string
	UID  uint32
	Dir  string
}

// PasswdPath is the password file enumerated by the password scan.
const PasswdPath = "/etc/passwd"

// ReadPasswd reads users from a passwd(5) file.
func ReadPasswd(path string) ([]User, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePasswd(f)
}

// ParsePasswd parses passwd(5) lines, skipping comments and malformed lines.
func ParsePasswd(r io.Reader) ([]User, error) {
	var users []User
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 6 {
			continue
		}
		uid, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			continue
		}
		users = append(users, User{Name: fields[0], UID: uint32(uid), Dir: fields[5]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read passwd: %w", err)
	}
	return users, nil
}

// Names maps uids to the first user name that owns them.
func Names(users []User) func(uid uint32) (string, bool) {
	m := make(map[uint32]string, len(users))
	for _, u := range users {
		if _, ok := m[u.UID]; !ok {
			m[u.UID] = u.Name
		}
	}
	return func(uid uint32) (string, bool) {
		name, ok := m[uid]
		return name, ok
	}
}
