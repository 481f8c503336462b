// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/cobaltcore-dev/nfsquota/pkg/conf"
	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
	"github.com/cobaltcore-dev/nfsquota/pkg/report"
	"github.com/cobaltcore-dev/nfsquota/pkg/rpc"
	"github.com/cobaltcore-dev/nfsquota/pkg/scan"
	"github.com/cobaltcore-dev/nfsquota/pkg/source"
)

var (
	rqDirScan         bool
	rqPwScan          bool
	rqBlockSize       string
	rqUIDRange        string
	rqReverse         bool
	rqSpaceSort       bool
	rqFilesSort       bool
	rqUsageOnly       bool
	rqSuppressHeading bool
	rqNoUserLookup    bool
	rqHuman           bool
	rqDebug           bool
	rqConfPath        string
	rqNFSTimeout      float64
	rqNFSRetryTimeout float64
	rqRate            float64
	rqProgress        bool
)

type RepquotaConfig struct {
	Filesystem      string
	ConfPath        string
	DirScan         bool
	PwScan          bool
	BlockSize       uint64
	UIDs            []uint32
	Reverse         bool
	SpaceSort       bool
	FilesSort       bool
	UsageOnly       bool
	SuppressHeading bool
	NoUserLookup    bool
	Human           bool
	NFSTimeout      time.Duration
	NFSRetryTimeout time.Duration
	Rate            float64
	Progress        bool
}

var repquotaCmd = &cobra.Command{
	Use:   "repquota [flags] fs",
	Short: "Report usage and limits of every user of a filesystem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rqDebug {
			raiseToDebug()
		}
		config := RepquotaConfig{
			Filesystem:      args[0],
			ConfPath:        rqConfPath,
			DirScan:         rqDirScan,
			PwScan:          rqPwScan,
			Reverse:         rqReverse,
			SpaceSort:       rqSpaceSort,
			FilesSort:       rqFilesSort,
			UsageOnly:       rqUsageOnly,
			SuppressHeading: rqSuppressHeading,
			NoUserLookup:    rqNoUserLookup,
			Human:           rqHuman,
			NFSTimeout:      seconds(rqNFSTimeout),
			NFSRetryTimeout: seconds(rqNFSRetryTimeout),
			Rate:            rqRate,
			Progress:        rqProgress,
		}

		bs, err := report.ParseBlockSize(rqBlockSize)
		if err != nil {
			return errors.New("error parsing blocksize")
		}
		config.BlockSize = bs
		if rqUIDRange != "" {
			if config.UIDs, err = scan.ParseUIDList(rqUIDRange); err != nil {
				return errors.New("error parsing uid-range")
			}
		}

		config = mergeRepquotaConfigWithEnv(cmd, config)

		log.Debug().
			Str("filesystem", config.Filesystem).
			Str("conf_path", config.ConfPath).
			Bool("dirscan", config.DirScan).
			Bool("pwscan", config.PwScan).
			Int("uids", len(config.UIDs)).
			Uint64("blocksize", config.BlockSize).
			Float64("rate", config.Rate).
			Dur("nfs_timeout", config.NFSTimeout).
			Dur("nfs_retry_timeout", config.NFSRetryTimeout).
			Msg("configuration_loaded")

		if err := validateRepquotaConfig(config); err != nil {
			return err
		}

		cfg, err := conf.Load(config.ConfPath)
		if err != nil {
			return err
		}

		opts := source.DefaultOptions()
		opts.Timeout = config.NFSTimeout
		opts.RetryTimeout = config.NFSRetryTimeout

		return runRepquota(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), source.New(opts), cfg, config)
	},
}

func mergeRepquotaConfigWithEnv(cmd *cobra.Command, cfg RepquotaConfig) RepquotaConfig {
	flags := cmd.Flags()
	if !flags.Changed("config") {
		cfg.ConfPath = getEnv("QUOTA_CONF", cfg.ConfPath)
	}
	if !flags.Changed("nfs-timeout") {
		cfg.NFSTimeout = seconds(getEnvFloat("NFS_TIMEOUT", cfg.NFSTimeout.Seconds()))
	}
	if !flags.Changed("nfs-retry-timeout") {
		cfg.NFSRetryTimeout = seconds(getEnvFloat("NFS_RETRY_TIMEOUT", cfg.NFSRetryTimeout.Seconds()))
	}
	if !flags.Changed("rate") {
		cfg.Rate = getEnvFloat("REPQUOTA_RATE", cfg.Rate)
	}
	return cfg
}

func validateRepquotaConfig(cfg RepquotaConfig) error {
	if cfg.FilesSort && cfg.SpaceSort {
		return errors.New("-F and -s are mutually exclusive")
	}
	if cfg.PwScan && cfg.DirScan {
		return errors.New("-p and -d are mutually exclusive")
	}
	if !cfg.PwScan && !cfg.DirScan && len(cfg.UIDs) == 0 {
		return errors.New("need at least one of -pdu")
	}
	if cfg.ConfPath == "" {
		return errors.New("--config or QUOTA_CONF must be set")
	}
	if cfg.NFSTimeout <= 0 || cfg.NFSRetryTimeout <= 0 {
		return errors.New("--nfs-timeout and --nfs-retry-timeout must be greater than 0")
	}
	if cfg.Rate < 0 {
		return errors.New("--rate must not be negative")
	}
	return nil
}

// runRepquota scans one filesystem and prints the sorted report. Users
// whose query fails are left out of the report.
func runRepquota(ctx context.Context, out, errOut io.Writer, src source.Source, cfg *conf.Config, rc RepquotaConfig) error {
	e, ok := cfg.ByLabel(rc.Filesystem)
	if !ok {
		return fmt.Errorf("%s: not found in quota.conf", rc.Filesystem)
	}

	var users []scan.User
	if rc.PwScan || !rc.NoUserLookup {
		var err error
		if users, err = readUsers(); err != nil {
			if rc.PwScan {
				return err
			}
			log.Warn().Err(err).Msg("user lookup disabled")
		}
	}

	sc := &scan.Scanner{
		Source: src,
		Store:  quota.NewStore(),
		OnError: func(e conf.Entry, uid uint32, err error) {
			if !errors.Is(err, source.ErrNoQuota) {
				fmt.Fprintf(errOut, "%s: uid %d: %s\n", e.Label, uid, queryErrorText(err))
			}
		},
	}
	if !rc.NoUserLookup {
		sc.Lookup = scan.Names(users)
	}
	if rc.Rate > 0 {
		sc.Limiter = rate.NewLimiter(rate.Limit(rc.Rate), 1)
	}

	var filter scan.UIDSet
	if len(rc.UIDs) > 0 {
		filter = scan.NewUIDSet(rc.UIDs)
	}

	if rc.Progress {
		total := -1
		switch {
		case rc.PwScan:
			total = 0
			for _, u := range users {
				if filter.Contains(u.UID) {
					total++
				}
			}
		case !rc.DirScan:
			total = len(rc.UIDs)
		}
		bar := progressbar.NewOptions(total,
			progressbar.OptionSetWriter(errOut),
			progressbar.OptionSetDescription("querying "+e.Label),
			progressbar.OptionClearOnFinish(),
		)
		sc.OnQuery = func() { _ = bar.Add(1) }
		defer func() { _ = bar.Finish() }()
	}

	var err error
	switch {
	case rc.PwScan:
		err = sc.PasswdScan(ctx, e, users, filter)
	case rc.DirScan:
		err = sc.DirScan(ctx, e, filter)
	default:
		err = sc.UIDScan(ctx, e, rc.UIDs)
	}
	if err != nil {
		return err
	}

	sc.Store.Sort(quota.Comparator(rc.Reverse, rc.SpaceSort, rc.FilesSort))

	f := &report.FSReport{Out: out, BlockSize: rc.BlockSize, Human: rc.Human, UsageOnly: rc.UsageOnly}
	if !rc.SuppressHeading {
		f.Heading(rc.Filesystem)
	}
	return sc.Store.ForEach(f.Row)
}

// readUsers is a variable so tests can supply a fixed user list.
var readUsers = func() ([]scan.User, error) {
	return scan.ReadPasswd(scan.PasswdPath)
}

func init() {
	repquotaCmd.Flags().BoolVarP(&rqDirScan, "dirscan", "d", false, "Report on users who own top level directories of fs")
	repquotaCmd.Flags().BoolVarP(&rqPwScan, "pwscan", "p", false, "Report on users in the password file")
	repquotaCmd.Flags().StringVarP(&rqBlockSize, "blocksize", "b", "1M", "Report usage in blocksize units (b, k, m, g suffixes)")
	repquotaCmd.Flags().StringVarP(&rqUIDRange, "uid-range", "u", "", "Range or list of uids to include, e.g. 0,100-200")
	repquotaCmd.Flags().BoolVarP(&rqReverse, "reverse", "r", false, "Sort in reverse order")
	repquotaCmd.Flags().BoolVarP(&rqSpaceSort, "space-sort", "s", false, "Sort on space used (default sort on uid)")
	repquotaCmd.Flags().BoolVarP(&rqFilesSort, "files-sort", "F", false, "Sort on files used (default sort on uid)")
	repquotaCmd.Flags().BoolVarP(&rqUsageOnly, "usage-only", "U", false, "Only report usage, not quota limits")
	repquotaCmd.Flags().BoolVarP(&rqSuppressHeading, "suppress-heading", "H", false, "Suppress report heading")
	repquotaCmd.Flags().BoolVarP(&rqNoUserLookup, "nouserlookup", "n", false, "Do not map uids to user names")
	repquotaCmd.Flags().BoolVarP(&rqHuman, "human-readable", "h", false, "Print sizes in human readable form")
	repquotaCmd.Flags().BoolVarP(&rqDebug, "debug", "D", false, "Enable debug logging")
	repquotaCmd.Flags().StringVarP(&rqConfPath, "config", "f", defaultConfPath, "Path to quota.conf, - for stdin")
	repquotaCmd.Flags().Float64VarP(&rqNFSTimeout, "nfs-timeout", "N", rpc.DefaultTimeout.Seconds(), "Total seconds to wait for an rquota reply")
	repquotaCmd.Flags().Float64VarP(&rqNFSRetryTimeout, "nfs-retry-timeout", "R", rpc.DefaultRetryTimeout.Seconds(), "Seconds between rquota retransmissions")
	repquotaCmd.Flags().Float64Var(&rqRate, "rate", 0, "Maximum queries per second (0 is unlimited)")
	repquotaCmd.Flags().BoolVar(&rqProgress, "progress", false, "Show a progress bar on stderr")
}
