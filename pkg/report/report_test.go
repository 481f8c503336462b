// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cobaltcore-dev/nfsquota/pkg/conf"
	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
)

const gib = 1024 * 1024 * 1024

func TestAbbrev(t *testing.T) {
	assert.Equal(t, "500.0K", Abbrev(500))
	assert.Equal(t, "1.5M", Abbrev(1500))
	assert.Equal(t, "1.9G", Abbrev(2_000_000))
	assert.Equal(t, "-0-", Abbrev(0))
	assert.True(t, strings.HasSuffix(Abbrev(999), "K"))
	assert.True(t, strings.HasSuffix(Abbrev(1000), "M"))
	assert.Equal(t, "2.0T", Abbrev(2*1024*1024*1024))
	assert.Equal(t, "85.0G", SizeToString(85*gib))
}

func TestGraceString(t *testing.T) {
	assert.Equal(t, "", GraceString(quota.Usage{State: quota.Under}))
	assert.Equal(t, "[7 days]", GraceString(quota.Usage{State: quota.NotStarted}))
	assert.Equal(t, "expired", GraceString(quota.Usage{State: quota.Expired}))
	assert.Equal(t, "1.0 day", GraceString(quota.Usage{State: quota.GraceActive, SecondsLeft: 86400}))
	assert.Equal(t, "2.5 days", GraceString(quota.Usage{State: quota.GraceActive, SecondsLeft: 216000}))
}

func homeRecord() *quota.Record {
	e := conf.Entry{Label: "home", Location: conf.NFS("server1", "/export/home"), Threshold: 90}
	r := quota.NewRecord(e, 1000)
	r.Bytes = quota.NewUsage(85*gib, 80*gib, 90*gib, quota.Grace{}, time.Now())
	r.Files = quota.NewUsage(12, 0, 0, quota.Grace{}, time.Now())
	return r
}

func TestLongNotStartedWithThreshold(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf}
	r := homeRecord()
	assert.Equal(t, quota.NotStarted, r.Bytes.State)

	assert.NoError(t, p.Long(r))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, "home           85.0G  80.0G  90.0G    [7 days]  12     n/a    n/a      ", lines[0])
	assert.Equal(t, "***  usage on home has exceeded 90% of quota!", lines[1])
}

func TestLongWrapsLongNames(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, RealPath: true}
	assert.NoError(t, p.Long(homeRecord()))
	assert.True(t, strings.HasPrefix(buf.String(), "server1:/export/home\n"+strings.Repeat(" ", 15)+"85.0G"))
}

func TestHeading(t *testing.T) {
	var buf bytes.Buffer
	(&Printer{Out: &buf}).Heading("alice")
	assert.Equal(t, "Disk quotas for alice:\n"+
		"Filesystem     used   quota  limit    timeleft  files  quota  limit    timeleft\n", buf.String())
}

func TestShort(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf}
	n := p.Short(homeRecord())
	assert.Equal(t, 1, n)
	assert.Equal(t, "Over disk quota on home, remove 5.0G within [7 days]\n", buf.String())
}

func TestShortThresholdOnly(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf}
	r := homeRecord()
	r.Bytes = quota.NewUsage(85*gib, 0, 90*gib, quota.Grace{}, time.Now())
	assert.Equal(t, 1, p.Short(r))
	assert.Equal(t, "Warning: usage on home has exceeded 90% of quota.\n", buf.String())
}

func TestShortExpiredFiles(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf}
	r := homeRecord()
	r.Threshold = 0
	r.Bytes = quota.NewUsage(1, 0, 0, quota.Grace{}, time.Now())
	r.Files = quota.NewUsage(30, 10, 20, quota.Grace{}, time.Now())
	assert.Equal(t, 1, p.Short(r))
	assert.Equal(t, "Over file quota on home, time limit expired\n", buf.String())
}

func TestShortNoLimitPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf}
	e := conf.Entry{Label: "scratch", Location: conf.Lustre("/lustre/scratch")}
	r := quota.NewRecord(e, 1000)
	r.Bytes = quota.NewUsage(5*gib, 0, 0, quota.LustreGrace(0), time.Now())
	r.Files = quota.NewUsage(100, 0, 0, quota.LustreGrace(0), time.Now())

	assert.Equal(t, quota.NoLimit, r.Bytes.State)
	assert.Equal(t, quota.NoLimit, r.Files.State)
	assert.Equal(t, 0, p.Short(r))
	assert.Empty(t, buf.String())
}

func TestFSReport(t *testing.T) {
	var buf bytes.Buffer
	f := &FSReport{Out: &buf, BlockSize: 1024, UsageOnly: true}
	f.Heading("home")
	r := homeRecord()
	r.Name = "alice"
	assert.NoError(t, f.Row(r))
	r.Name = ""
	assert.NoError(t, f.Row(r))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, "Quota report for home (blocksize 1.0K)", lines[0])
	assert.Equal(t, "alice      1000   89128960   12", lines[2])
	assert.Equal(t, "1000       1000   89128960   12", lines[3])
}

func TestFSReportHuman(t *testing.T) {
	var buf bytes.Buffer
	f := &FSReport{Out: &buf, BlockSize: 1024, Human: true}
	f.Heading("home")
	assert.True(t, strings.HasPrefix(buf.String(), "Quota report for home\nUser "))
	buf.Reset()
	assert.NoError(t, f.Row(homeRecord()))
	assert.True(t, strings.HasPrefix(buf.String(), "1000       1000   85.0G      80.0G      90.0G      [7 days]"))
}

func TestParseBlockSize(t *testing.T) {
	for in, want := range map[string]uint64{
		"512": 512, "1b": 1, "4k": 4096, "4K": 4096, "1m": 1024 * 1024, "2G": 2 * gib,
	} {
		got, err := ParseBlockSize(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "k", "1x", "1kb", "0"} {
		_, err := ParseBlockSize(in)
		assert.Error(t, err, in)
	}
}
