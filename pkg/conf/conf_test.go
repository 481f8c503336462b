// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package conf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPath(t *testing.T) {
	tests := []struct {
		dir, mount string
		want       bool
	}{
		{"/g/g53/foo", "/g/g5", false},
		{"/g/g53/foo", "/g/g53", true},
		{"/g/g5/foo", "/g/g53", false},
		{"/g/g5/foo", "/g/g5", true},
		{"/g/g53/a/b/c/d/e/f/g/h/i/j", "/g", true},
		{"/g/g53//a/b/c/d/e/f/g/h/i/j", "/g/g53", true},
		{"/home/foo", "/home", true},
		{"/home/foo", "/home/foo", true},
		{"/a", "/", true},
		{"/home/foo", "/", true},
		{"/home", "/home/foo", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchPath(tt.dir, tt.mount), "MatchPath(%q, %q)", tt.dir, tt.mount)
	}
}

func TestParse(t *testing.T) {
	input := `# filesystems
/g/g0:server1:/export/g0:90
/p/lscratcha:lustre:/p/lscratcha   # scratch, no threshold

/home:server2:/export/home:0
`
	cfg, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cfg.Entries, 3)

	assert.Equal(t, Entry{Label: "/g/g0", Location: NFS("server1", "/export/g0"), Threshold: 90}, cfg.Entries[0])
	assert.Equal(t, KindLustre, cfg.Entries[1].Location.Kind)
	assert.Equal(t, "/p/lscratcha", cfg.Entries[1].Location.Path)
	assert.Equal(t, 0, cfg.Entries[1].Threshold)
	assert.Equal(t, "server2:/export/home", cfg.Entries[2].Location.String())
}

func TestParseBadThreshold(t *testing.T) {
	_, err := Parse(strings.NewReader("home:server1:/export/home:lots\n"))
	assert.Error(t, err)
}

func TestLookups(t *testing.T) {
	cfg, err := Parse(strings.NewReader("/g/g5:s1:/g5\n/g/g53:s2:/g53\n/:s3:/root\n"))
	require.NoError(t, err)

	e, ok := cfg.ByLabel("/g/g53")
	require.True(t, ok)
	assert.Equal(t, "s2", e.Location.Host)

	_, ok = cfg.ByLabel("/nope")
	assert.False(t, ok)

	e, ok = cfg.ContainingDir("/g/g53/alice")
	require.True(t, ok)
	assert.Equal(t, "/g/g53", e.Label)

	e, ok = cfg.ContainingDir("/usr/local")
	require.True(t, ok)
	assert.Equal(t, "/", e.Label)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "quota.conf"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.conf")
	require.NoError(t, os.WriteFile(path, []byte("home:server1:/export/home:90\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Entries, 1)
}
