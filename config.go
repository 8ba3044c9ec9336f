package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "FISHBOWL"

type Config struct {
	bind           string
	playerTimeout  time.Duration
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool

	deck         string
	turnSeconds  int
	tickInterval time.Duration
	pausePoll    time.Duration
	rounds       int
	handSize     int
	submissions  int

	natsURL        string
	natsSubject    string
	allowedOrigins []string
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.playerTimeout < 0 {
		return fmt.Errorf("invalid player timeout (must not be negative): %s", c.playerTimeout)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}
	if c.turnSeconds < 1 {
		return fmt.Errorf("invalid turn length (must be at least 1 second): %d", c.turnSeconds)
	}
	if c.tickInterval <= 0 {
		return fmt.Errorf("invalid tick interval (must be positive): %s", c.tickInterval)
	}
	if c.pausePoll <= 0 {
		return fmt.Errorf("invalid pause poll interval (must be positive): %s", c.pausePoll)
	}
	if c.rounds < 1 {
		return fmt.Errorf("invalid round count (must be at least 1): %d", c.rounds)
	}
	if c.submissions < 1 {
		return fmt.Errorf("invalid submission quota (must be at least 1): %d", c.submissions)
	}
	if c.handSize < c.submissions {
		return fmt.Errorf("invalid hand size (must be at least the submission quota of %d): %d", c.submissions, c.handSize)
	}
	if c.natsURL != "" && c.natsSubject == "" {
		return errors.New("--nats-subject must not be empty when --nats-url is set")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) rules() Rules {
	return Rules{
		HandSize:    c.handSize,
		Submissions: c.submissions,
		TurnSeconds: c.turnSeconds,
		TotalRounds: c.rounds,
	}
}

func (c *Config) timing() Timing {
	return Timing{
		TickInterval: c.tickInterval,
		PausePoll:    c.pausePoll,
	}
}

func (c *Config) originAllowed(origin string) bool {
	if len(c.allowedOrigins) == 0 {
		return true
	}
	return slices.Contains(c.allowedOrigins, "*") || slices.Contains(c.allowedOrigins, origin)
}

// loadEnvFile reads FISHBOWL_ENV_FILE, or ./.env when present, into the
// process environment. Variables already set are left alone.
func loadEnvFile() error {
	path := os.Getenv(envPrefix + "_ENV_FILE")
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}

	return godotenv.Load(path)
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "fishbowl",
		Short:         "Live team party games where everyone fills the bowl, then guesses it empty.",
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

	defaults := DefaultRules()
	timing := DefaultTiming()

	fs.StringSliceVar(&cfg.allowedOrigins, "allowed-origins", nil, "origins allowed to open sockets and call the API; empty allows any (env: FISHBOWL_ALLOWED_ORIGINS)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: FISHBOWL_BIND)")
	fs.StringVar(&cfg.deck, "deck", "", "path to a YAML card deck, replacing the built-in one (env: FISHBOWL_DECK)")
	fs.IntVar(&cfg.handSize, "hand-size", defaults.HandSize, "cards dealt to each player (env: FISHBOWL_HAND_SIZE)")
	fs.StringVar(&cfg.natsURL, "nats-url", "", "also publish game events to this NATS server (env: FISHBOWL_NATS_URL)")
	fs.StringVar(&cfg.natsSubject, "nats-subject", "fishbowl.events", "subject prefix for published game events (env: FISHBOWL_NATS_SUBJECT)")
	fs.DurationVar(&cfg.pausePoll, "pause-poll", timing.PausePoll, "how often a paused turn checks for resume (env: FISHBOWL_PAUSE_POLL)")
	fs.DurationVar(&cfg.playerTimeout, "player-timeout", 10*time.Minute, "time before disconnected players are removed; 0 keeps them (env: FISHBOWL_PLAYER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: FISHBOWL_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: FISHBOWL_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: FISHBOWL_PROFILE)")
	fs.IntVar(&cfg.rounds, "rounds", defaults.TotalRounds, "rounds per game (env: FISHBOWL_ROUNDS)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 0, "time before idle game sessions are ended; 0 keeps them until empty (env: FISHBOWL_SESSION_TIMEOUT)")
	fs.IntVar(&cfg.submissions, "submissions", defaults.Submissions, "cards each player puts in the bowl (env: FISHBOWL_SUBMISSIONS)")
	fs.DurationVar(&cfg.tickInterval, "tick-interval", timing.TickInterval, "real time per game second (env: FISHBOWL_TICK_INTERVAL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: FISHBOWL_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: FISHBOWL_TLS_KEY)")
	fs.IntVar(&cfg.turnSeconds, "turn-seconds", defaults.TurnSeconds, "length of each turn in game seconds (env: FISHBOWL_TURN_SECONDS)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: FISHBOWL_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: FISHBOWL_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("fishbowl v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
