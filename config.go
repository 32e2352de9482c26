package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	dbPath         string
	fakePostTTL    time.Duration
	port           int
	prefix         string
	profile        bool
	rounds         int
	sessionTTL     time.Duration
	tlsCert        string
	tlsKey         string
	truthPostTTL   time.Duration
	truthPostSweep time.Duration
	tursoDatabase  string
	tursoToken     string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if (c.tursoDatabase == "") != (c.tursoToken == "") {
		return errors.New("both --turso-database and --turso-token must be provided together")
	}
	if c.rounds < 1 {
		return fmt.Errorf("invalid rounds per session (must be at least 1): %d", c.rounds)
	}
	if c.sessionTTL <= 0 || c.fakePostTTL <= 0 || c.truthPostTTL <= 0 || c.truthPostSweep <= 0 {
		return errors.New("all expiry durations must be positive")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TRUTHORTROLL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "truthortroll",
		Short:         "Backend for a spot-the-fake-post trivia game, with balanced question selection and a shared leaderboard.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TRUTHORTROLL_BIND)")
	fs.StringVar(&cfg.dbPath, "db-path", "truthortroll.db", "path to local sqlite tracking database (env: TRUTHORTROLL_DB_PATH)")
	fs.DurationVar(&cfg.fakePostTTL, "fake-post-ttl", 7*24*time.Hour, "rolling expiry on the shared used-fake-post set (env: TRUTHORTROLL_FAKE_POST_TTL)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TRUTHORTROLL_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TRUTHORTROLL_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TRUTHORTROLL_PROFILE)")
	fs.IntVar(&cfg.rounds, "rounds", 10, "rounds in one play-through (env: TRUTHORTROLL_ROUNDS)")
	fs.DurationVar(&cfg.sessionTTL, "session-ttl", 24*time.Hour, "expiry on per-session tracking state (env: TRUTHORTROLL_SESSION_TTL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TRUTHORTROLL_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TRUTHORTROLL_TLS_KEY)")
	fs.DurationVar(&cfg.truthPostTTL, "truth-post-ttl", time.Hour, "expiry on per-session used-truth-post tracking (env: TRUTHORTROLL_TRUTH_POST_TTL)")
	fs.DurationVar(&cfg.truthPostSweep, "truth-post-sweep", 5*time.Hour, "age past which truth-post entries are pruned on write (env: TRUTHORTROLL_TRUTH_POST_SWEEP)")
	fs.StringVar(&cfg.tursoDatabase, "turso-database", "", "turso database url; falls back to local sqlite when unset (env: TRUTHORTROLL_TURSO_DATABASE)")
	fs.StringVar(&cfg.tursoToken, "turso-token", "", "turso auth token (env: TRUTHORTROLL_TURSO_TOKEN)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TRUTHORTROLL_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TRUTHORTROLL_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("truthortroll v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
