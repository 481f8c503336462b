// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strconv"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cobaltcore-dev/nfsquota/pkg/conf"
	"github.com/cobaltcore-dev/nfsquota/pkg/quota"
	"github.com/cobaltcore-dev/nfsquota/pkg/report"
	"github.com/cobaltcore-dev/nfsquota/pkg/rpc"
	"github.com/cobaltcore-dev/nfsquota/pkg/scan"
	"github.com/cobaltcore-dev/nfsquota/pkg/source"
)

var (
	qVerbose         bool
	qLogin           bool
	qRealPath        bool
	qDebug           bool
	qTimeout         int
	qNFSTimeout      float64
	qNFSRetryTimeout float64
	qConfPath        string
)

// looked up through variables so tests can stub the user database
var (
	lookupUser   = user.Lookup
	lookupUserID = user.LookupId
)

type QuotaConfig struct {
	ConfPath        string
	Verbose         bool
	Login           bool
	RealPath        bool
	Debug           bool
	Timeout         time.Duration
	NFSTimeout      time.Duration
	NFSRetryTimeout time.Duration
}

// quotaUser is the account being reported on.
type quotaUser struct {
	Name string
	UID  uint32
	Home string
}

var quotaCmd = &cobra.Command{
	Use:   "quota [user]",
	Short: "Display a user's disk usage and limits",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if qDebug {
			raiseToDebug()
		}
		config := QuotaConfig{
			ConfPath:        qConfPath,
			Verbose:         qVerbose,
			Login:           qLogin,
			RealPath:        qRealPath,
			Debug:           qDebug,
			Timeout:         time.Duration(qTimeout) * time.Second,
			NFSTimeout:      seconds(qNFSTimeout),
			NFSRetryTimeout: seconds(qNFSRetryTimeout),
		}
		config = mergeQuotaConfigWithEnv(cmd, config)

		log.Debug().
			Str("conf_path", config.ConfPath).
			Bool("verbose", config.Verbose).
			Bool("login", config.Login).
			Bool("realpath", config.RealPath).
			Dur("timeout", config.Timeout).
			Dur("nfs_timeout", config.NFSTimeout).
			Dur("nfs_retry_timeout", config.NFSRetryTimeout).
			Msg("configuration_loaded")

		if err := validateQuotaConfig(config); err != nil {
			return err
		}

		if config.Timeout > 0 {
			t := time.AfterFunc(config.Timeout, func() {
				log.Fatal().Msg("timeout, aborting")
			})
			defer t.Stop()
		}

		var name string
		if len(args) > 0 {
			name = args[0]
		}
		u, err := resolveUser(name)
		if err != nil {
			return err
		}

		cfg, err := conf.Load(config.ConfPath)
		if err != nil {
			return err
		}

		opts := source.DefaultOptions()
		opts.Timeout = config.NFSTimeout
		opts.RetryTimeout = config.NFSRetryTimeout

		return runQuota(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), source.New(opts), cfg, u, config)
	},
}

func mergeQuotaConfigWithEnv(cmd *cobra.Command, cfg QuotaConfig) QuotaConfig {
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
	return cfg
}

func validateQuotaConfig(cfg QuotaConfig) error {
	if cfg.ConfPath == "" {
		return errors.New("--config or QUOTA_CONF must be set")
	}
	if cfg.Timeout < 0 {
		return errors.New("--timeout must not be negative")
	}
	if cfg.NFSTimeout <= 0 || cfg.NFSRetryTimeout <= 0 {
		return errors.New("--nfs-timeout and --nfs-retry-timeout must be greater than 0")
	}
	return nil
}

// resolveUser finds the account to report on. An empty name means the
// effective uid. A numeric name need not exist in the user database.
func resolveUser(name string) (quotaUser, error) {
	if name == "" {
		uid := os.Geteuid()
		u, err := lookupUserID(strconv.Itoa(uid))
		if err != nil {
			return quotaUser{}, fmt.Errorf("could not look up uid %d: %w", uid, err)
		}
		return fromOSUser(u)
	}

	if unicode.IsDigit(rune(name[0])) {
		uid, err := strconv.ParseUint(name, 10, 32)
		if err != nil {
			return quotaUser{}, errors.New("error parsing uid")
		}
		u, err := lookupUserID(name)
		if err != nil {
			return quotaUser{Name: name, UID: uint32(uid), Home: "/"}, nil
		}
		qu, err := fromOSUser(u)
		if err != nil {
			return quotaUser{}, err
		}
		qu.Name = name
		return qu, nil
	}

	u, err := lookupUser(name)
	if err != nil {
		return quotaUser{}, fmt.Errorf("no such user: %s", name)
	}
	return fromOSUser(u)
}

func fromOSUser(u *user.User) (quotaUser, error) {
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return quotaUser{}, fmt.Errorf("bad uid %q for %s", u.Uid, u.Username)
	}
	return quotaUser{Name: u.Username, UID: uint32(uid), Home: u.HomeDir}, nil
}

// runQuota gathers u's quotas and prints the long or short report. Failed
// filesystems are skipped, and reported on errOut only in verbose mode.
// In login mode any failure is fatal.
func runQuota(ctx context.Context, out, errOut io.Writer, src source.Source, cfg *conf.Config, u quotaUser, qc QuotaConfig) error {
	sc := &scan.Scanner{
		Source: src,
		Store:  quota.NewStore(),
		OnError: func(e conf.Entry, uid uint32, err error) {
			if qc.Verbose && !errors.Is(err, source.ErrNoQuota) {
				fmt.Fprintf(errOut, "%s: %s\n", e.Label, queryErrorText(err))
			}
		},
	}

	if qc.Login {
		if err := sc.Login(ctx, cfg, u.Home, u.UID); err != nil {
			if errors.Is(err, scan.ErrNoEntry) {
				return fmt.Errorf("could not find quota.conf entry for %s", u.Home)
			}
			return err
		}
	} else if err := sc.AllFilesystems(ctx, cfg.Entries, u.UID); err != nil {
		return err
	}

	if qc.Debug {
		dump := &report.Printer{Out: errOut}
		_ = sc.Store.ForEach(dump.Raw)
	}

	p := &report.Printer{Out: out, RealPath: qc.RealPath}
	if qc.Verbose {
		p.Heading(u.Name)
		return sc.Store.ForEach(p.Long)
	}

	msgs := 0
	_ = sc.Store.ForEach(func(r *quota.Record) error {
		msgs += p.Short(r)
		return nil
	})
	if msgs > 0 {
		fmt.Fprintln(out, report.MoreInfo)
	}
	return nil
}

// queryErrorText renders adapter errors the way users expect to read them.
func queryErrorText(err error) string {
	switch {
	case errors.Is(err, source.ErrNoQuota):
		return "no quota"
	case errors.Is(err, source.ErrPermission):
		return "permission denied"
	case errors.Is(err, rpc.ErrTimeout):
		return "timed out"
	default:
		return err.Error()
	}
}

func init() {
	quotaCmd.Flags().BoolVarP(&qVerbose, "verbose", "v", false, "Show all quotas, including those not over limit")
	quotaCmd.Flags().BoolVarP(&qLogin, "login", "l", false, "Only report the filesystem holding the home directory")
	quotaCmd.Flags().BoolVarP(&qRealPath, "realpath", "r", false, "Show host:path instead of the filesystem label")
	quotaCmd.Flags().BoolVarP(&qDebug, "debug", "d", false, "Enable debug logging")
	quotaCmd.Flags().IntVarP(&qTimeout, "timeout", "t", 0, "Abort after this many seconds (0 disables)")
	quotaCmd.Flags().Float64VarP(&qNFSTimeout, "nfs-timeout", "N", rpc.DefaultTimeout.Seconds(), "Total seconds to wait for an rquota reply")
	quotaCmd.Flags().Float64VarP(&qNFSRetryTimeout, "nfs-retry-timeout", "R", rpc.DefaultRetryTimeout.Seconds(), "Seconds between rquota retransmissions")
	quotaCmd.Flags().StringVarP(&qConfPath, "config", "f", defaultConfPath, "Path to quota.conf, - for stdin")
}
