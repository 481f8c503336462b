// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package conf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultPath is used when no config file is given on the command line.
const DefaultPath = "/etc/quota.conf"

// LustreHost is the host field value that marks a locally mounted Lustre filesystem.
const LustreHost = "lustre"

type Kind int

const (
	KindNFS Kind = iota
	KindLustre
)

func (k Kind) String() string {
	switch k {
	case KindNFS:
		return "nfs"
	case KindLustre:
		return "lustre"
	default:
		return "unknown"
	}
}

// Location identifies where a filesystem's quotas live. For KindNFS, Host
// and Path name the server and its exported path; for KindLustre, Path is
// the local mountpoint.
type Location struct {
	Kind Kind   `json:"kind"`
	Host string `json:"host,omitempty"`
	Path string `json:"path"`
}

func NFS(host, path string) Location {
	return Location{Kind: KindNFS, Host: host, Path: path}
}

func Lustre(mount string) Location {
	return Location{Kind: KindLustre, Path: mount}
}

// String renders the location the way the realpath report option shows it.
func (l Location) String() string {
	if l.Kind == KindLustre {
		return LustreHost + ":" + l.Path
	}
	return l.Host + ":" + l.Path
}

type Entry struct {
	Label     string   `json:"label"`
	Location  Location `json:"location"`
	Threshold int      `json:"threshold"`
}

// Config is the ordered list of entries read from a quota.conf file.
type Config struct {
	Entries []Entry
}

// Load reads the config at path. A path of "-" reads standard input.
func Load(path string) (*Config, error) {
	if path == "-" {
		return Parse(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse reads label:host:path:threshold lines. Text after '#' is ignored,
// as are blank lines and trailing whitespace.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimRight(line, " \t\r\n\v\f")
		if line == "" {
			continue
		}
		e, err := parseEntry(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		cfg.Entries = append(cfg.Entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}
	return cfg, nil
}

func parseEntry(line string) (Entry, error) {
	fields := strings.SplitN(line, ":", 4)
	for len(fields) < 4 {
		fields = append(fields, "")
	}
	e := Entry{Label: fields[0]}
	if e.Label == "" {
		return Entry{}, fmt.Errorf("missing label")
	}

	host, path := fields[1], fields[2]
	if host == LustreHost {
		e.Location = Lustre(path)
	} else {
		e.Location = NFS(host, path)
	}

	if t := strings.TrimSpace(fields[3]); t != "" {
		n, err := strconv.ParseUint(t, 10, 31)
		if err != nil {
			return Entry{}, fmt.Errorf("bad threshold %q: %w", t, err)
		}
		e.Threshold = int(n)
	}
	return e, nil
}

// ByLabel returns the first entry whose label equals label.
func (c *Config) ByLabel(label string) (Entry, bool) {
	for _, e := range c.Entries {
		if e.Label == label {
			return e, true
		}
	}
	return Entry{}, false
}

// ContainingDir returns the first entry whose label is a mountpoint
// containing dir, e.g. the filesystem holding a home directory.
func (c *Config) ContainingDir(dir string) (Entry, bool) {
	for _, e := range c.Entries {
		if MatchPath(dir, e.Label) {
			return e, true
		}
	}
	return Entry{}, false
}

// MatchPath reports whether dir lies on mountpoint. Only whole path
// components match: "/g/g5" does not contain "/g/g53/foo".
func MatchPath(dir, mountpoint string) bool {
	if mountpoint == "/" || mountpoint == dir {
		return true
	}
	if len(mountpoint) > len(dir) {
		return false
	}
	return strings.HasPrefix(dir, mountpoint) && len(dir) > len(mountpoint) && dir[len(mountpoint)] == '/'
}
