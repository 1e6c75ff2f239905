package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/corslight-go/internal/channel/netport"
	clicfg "github.com/yndnr/corslight-go/internal/cli/config"
	"github.com/yndnr/corslight-go/internal/cli/output"
	"github.com/yndnr/corslight-go/internal/client"
	"github.com/yndnr/corslight-go/internal/infra/buildinfo"
	"github.com/yndnr/corslight-go/internal/protocol"
)

// Global flag defaults.
const (
	DefaultServer  = "127.0.0.1:5380"
	DefaultOrigin  = "http://localhost"
	DefaultTimeout = 10 * time.Second
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "corslight-cli",
		Usage:   "Read and write a corslight storage document from the shell",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			StoreCommand(),
			FetchCommand(),
			RemoveCommand(),
			ProfileCommand(),
			VersionCommand(),
		},
		Before: applyProfile,
	}
}

// applyProfile fills flags the user did not set from the selected profile,
// then validates the output format.
func applyProfile(c *cli.Context) error {
	cfg, err := clicfg.Load(c.String("config"))
	if err != nil {
		return err
	}

	name := c.String("profile")
	profile, ok := cfg.Profile(name)
	if !ok && name != "" {
		return fmt.Errorf("unknown profile %q", name)
	}
	for flag, value := range profile.Fields() {
		if c.IsSet(flag) {
			continue
		}
		if err := c.Set(flag, value); err != nil {
			return fmt.Errorf("profile %s: %w", flag, err)
		}
	}
	if cfg.DefaultOutput != "" && !c.IsSet("output") {
		if err := c.Set("output", cfg.DefaultOutput); err != nil {
			return err
		}
	}

	if f := output.Format(c.String("output")); !f.Valid() {
		return fmt.Errorf("unknown output format %q", f)
	}
	return nil
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config file (default: ~/.corslight/cli.yaml)",
			EnvVars: []string{"CORSLIGHT_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "Profile from the CLI config file",
			EnvVars: []string{"CORSLIGHT_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "corslight-server frame address or unix socket path",
			EnvVars: []string{"CORSLIGHT_SERVER"},
			Value:   DefaultServer,
		},
		&cli.StringFlag{
			Name:    "network",
			Usage:   "Network of --server: tcp or unix",
			EnvVars: []string{"CORSLIGHT_NETWORK"},
			Value:   "tcp",
		},
		&cli.StringFlag{
			Name:    "target",
			Aliases: []string{"t"},
			Usage:   "URL of the storage document (e.g., https://store.example.com/frame.html)",
			EnvVars: []string{"CORSLIGHT_TARGET"},
		},
		&cli.StringFlag{
			Name:    "origin",
			Usage:   "Origin announced as the embedding page",
			EnvVars: []string{"CORSLIGHT_ORIGIN"},
			Value:   DefaultOrigin,
		},
		&cli.StringFlag{
			Name:    "namespace",
			Usage:   "Protocol action namespace",
			EnvVars: []string{"CORSLIGHT_NAMESPACE"},
			Value:   protocol.DefaultNamespace,
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "Give up on a request after this long",
			EnvVars: []string{"CORSLIGHT_TIMEOUT"},
			Value:   DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log channel activity to stderr",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	// Channel
	Server    string
	Network   string
	Target    string
	Origin    string
	Namespace string
	Timeout   time.Duration

	// Output format
	Output string // table, json, yaml
	Wide   bool

	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:    c.String("server"),
		Network:   c.String("network"),
		Target:    c.String("target"),
		Origin:    c.String("origin"),
		Namespace: c.String("namespace"),
		Timeout:   c.Duration("timeout"),
		Output:    c.String("output"),
		Wide:      c.Bool("wide"),
		Verbose:   c.Bool("verbose"),
	}
}

// NewClient builds a client that dials the server on its first request.
func NewClient(c *cli.Context) (*client.Client, error) {
	flags := ParseGlobalFlags(c)
	if flags.Target == "" {
		return nil, fmt.Errorf("--target is required")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if flags.Verbose {
		logger = slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	dialer := &netport.Dialer{
		Network: flags.Network,
		Addr:    flags.Server,
		Origin:  flags.Origin,
		Timeout: flags.Timeout,
		Logger:  logger,
	}
	return client.New(flags.Target, dialer,
		client.WithNamespace(flags.Namespace),
		client.WithLogger(logger),
		client.WithErrorSink(func(err error) {
			if flags.Verbose {
				PrintError("%v", err)
			}
		}),
	)
}

// render writes data to the app writer in the selected format.
func render(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	return output.NewFormatter(output.Format(flags.Output), flags.Wide).Format(c.App.Writer, data)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
