// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobaltcore-dev/nfsquota/pkg/conf"
	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
	"github.com/cobaltcore-dev/nfsquota/pkg/rpc"
)

var testNow = time.Unix(1_700_000_000, 0)

type fakeGetter struct {
	rq  *rpc.Rquota
	err error
}

func (f *fakeGetter) GetQuota(ctx context.Context, host, path string, uid uint32) (*rpc.Rquota, error) {
	return f.rq, f.err
}

func testNFS(euid int, g *fakeGetter) *NFS {
	opts := Options{EUID: euid, Quirks: quota.DefaultQuirks, Now: func() time.Time { return testNow }}
	n := NewNFS(opts)
	n.Dial = func(uid uint32) (QuotaGetter, error) { return g, nil }
	return n
}

var homeEntry = conf.Entry{Label: "home", Location: conf.NFS("server1", "/export/home"), Threshold: 90}

func TestNFSQuery(t *testing.T) {
	g := &fakeGetter{rq: &rpc.Rquota{
		BSize: 1024, BSoftLimit: 100, BHardLimit: 200, CurBlocks: 150, BTimeLeft: 3600,
		FSoftLimit: 10, FHardLimit: 0xffffffff, CurFiles: 1,
	}}
	r, err := testNFS(0, g).Query(context.Background(), homeEntry, 1000)
	require.NoError(t, err)

	assert.Equal(t, uint32(1000), r.UID)
	assert.Equal(t, "home", r.Label)
	assert.Equal(t, 90, r.Threshold)
	assert.Equal(t, uint64(150*1024), r.Bytes.Used)
	assert.Equal(t, uint64(100*1024), r.Bytes.Soft)
	assert.Equal(t, uint64(200*1024), r.Bytes.Hard)
	assert.Equal(t, quota.GraceActive, r.Bytes.State)
	assert.Equal(t, uint64(3600), r.Bytes.SecondsLeft)

	assert.Equal(t, uint64(0), r.Files.Hard)
	assert.Equal(t, quota.Under, r.Files.State)
}

func TestNFSQueryNotStartedSkew(t *testing.T) {
	// rquotad computed 0 - now on a slightly different clock
	skewed := uint32(int32(-(testNow.Unix() + 600)))
	g := &fakeGetter{rq: &rpc.Rquota{BSize: 512, BSoftLimit: 10, BHardLimit: 20, CurBlocks: 15, BTimeLeft: skewed}}
	r, err := testNFS(0, g).Query(context.Background(), homeEntry, 1000)
	require.NoError(t, err)
	assert.Equal(t, quota.NotStarted, r.Bytes.State)
	assert.Equal(t, quota.NoLimit, r.Files.State)
}

func TestNFSQueryErrors(t *testing.T) {
	_, err := testNFS(0, &fakeGetter{err: rpc.ErrNoQuota}).Query(context.Background(), homeEntry, 1000)
	assert.ErrorIs(t, err, ErrNoQuota)
	assert.Contains(t, err.Error(), "server1:/export/home")

	_, err = testNFS(0, &fakeGetter{err: rpc.ErrPermission}).Query(context.Background(), homeEntry, 1000)
	assert.ErrorIs(t, err, ErrPermission)

	_, err = testNFS(0, &fakeGetter{err: rpc.ErrTimeout}).Query(context.Background(), homeEntry, 1000)
	assert.ErrorIs(t, err, rpc.ErrTimeout)
}

func TestNFSQueryBadBlockSize(t *testing.T) {
	for _, bsize := range []int32{0, -1024} {
		g := &fakeGetter{rq: &rpc.Rquota{BSize: bsize, BSoftLimit: 10, BHardLimit: 20, CurBlocks: 15}}
		r, err := testNFS(0, g).Query(context.Background(), homeEntry, 1000)
		require.Error(t, err, bsize)
		assert.Nil(t, r)
		assert.Contains(t, err.Error(), "bad block size")
	}
}

func TestNFSQueryOtherUser(t *testing.T) {
	g := &fakeGetter{rq: &rpc.Rquota{BSize: 1024}}
	_, err := testNFS(500, g).Query(context.Background(), homeEntry, 1000)
	assert.ErrorIs(t, err, ErrPermission)

	_, err = testNFS(1000, g).Query(context.Background(), homeEntry, 1000)
	assert.NoError(t, err)
}

func testLustre(fstype string, d *Dqblk, err error) *Lustre {
	l := NewLustre(Options{Now: func() time.Time { return testNow }})
	l.Partitions = func() ([]disk.PartitionStat, error) {
		return []disk.PartitionStat{
			{Mountpoint: "/", Fstype: "ext4"},
			{Mountpoint: "/lustre/scratch", Fstype: fstype},
		}, nil
	}
	l.Quotactl = func(mount string, uid uint32) (*Dqblk, error) { return d, err }
	return l
}

var scratchEntry = conf.Entry{Label: "scratch", Location: conf.Lustre("/lustre/scratch/")}

func TestLustreQuery(t *testing.T) {
	d := &Dqblk{
		CurSpace: 3 * 1024 * 1024, BSoftLimit: 2048, BHardLimit: 4096,
		BTime: uint64(testNow.Add(time.Hour).Unix()),
		CurInodes: 50, ISoftLimit: 10, IHardLimit: 100, ITime: uint64(testNow.Add(-time.Hour).Unix()),
	}
	r, err := testLustre("lustre", d, nil).Query(context.Background(), scratchEntry, 1000)
	require.NoError(t, err)

	assert.Equal(t, uint64(2048*1024), r.Bytes.Soft)
	assert.Equal(t, quota.GraceActive, r.Bytes.State)
	assert.Equal(t, uint64(3600), r.Bytes.SecondsLeft)
	assert.Equal(t, quota.Expired, r.Files.State)
}

func TestLustreQueryNoLimit(t *testing.T) {
	d := &Dqblk{CurSpace: 1 << 30, CurInodes: 100}
	r, err := testLustre("lustre", d, nil).Query(context.Background(), scratchEntry, 1000)
	require.NoError(t, err)
	assert.Equal(t, quota.NoLimit, r.Bytes.State)
	assert.Equal(t, quota.NoLimit, r.Files.State)
}

func TestLustreQueryErrors(t *testing.T) {
	_, err := testLustre("nfs", &Dqblk{}, nil).Query(context.Background(), scratchEntry, 1000)
	assert.ErrorIs(t, err, ErrNotMounted)

	boom := errors.New("boom")
	_, err = testLustre("lustre", nil, boom).Query(context.Background(), scratchEntry, 1000)
	assert.ErrorIs(t, err, boom)
}

func TestDispatcher(t *testing.T) {
	var got []string
	d := &Dispatcher{
		NFS: Func(func(ctx context.Context, e conf.Entry, uid uint32) (*quota.Record, error) {
			got = append(got, "nfs")
			return quota.NewRecord(e, uid), nil
		}),
		Lustre: Func(func(ctx context.Context, e conf.Entry, uid uint32) (*quota.Record, error) {
			got = append(got, "lustre")
			return quota.NewRecord(e, uid), nil
		}),
	}
	_, err := d.Query(context.Background(), homeEntry, 1)
	require.NoError(t, err)
	_, err = d.Query(context.Background(), scratchEntry, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"nfs", "lustre"}, got)
}
