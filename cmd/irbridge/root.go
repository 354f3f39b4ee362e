package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/globalcache"
	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/irbridge"
	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/lirc"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// probeTimeout bounds one probe command end to end.
	probeTimeout = 15 * time.Second
)

// cliFlags holds the persistent flags shared by every command.
type cliFlags struct {
	config   string
	logLevel string
}

// configPath returns the --config flag, GRAYLOGIC_CONFIG, or the default,
// in that order.
func (f *cliFlags) configPath() string {
	if f.config != "" {
		return f.config
	}
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "irbridge",
		Short: "Gray Logic IR and relay bridge",
		Long: `irbridge drives infrared blasters and relay outputs (Global Caché,
lircd, Broadlink) and exposes them as entities over MQTT, a REST API and
a WebSocket feed.

Running irbridge without a subcommand is the same as 'irbridge serve'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), flags)
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("irbridge %s (commit %s, built %s)\n", version, commit, date))

	root.PersistentFlags().StringVar(&flags.config, "config", "", "Config file path (env: GRAYLOGIC_CONFIG, default: "+defaultConfigPath+")")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override logging.level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(flags),
		newResolveCmd(),
		newProbeCmd(),
		newServiceCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), flags)
		},
	}
}

// serve runs the bridge until SIGINT or SIGTERM.
func serve(parent context.Context, flags *cliFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return run(ctx, runOptions{
		ConfigPath: flags.configPath(),
		LogLevel:   flags.logLevel,
	})
}

func newResolveCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "resolve <command>...",
		Short: "Show which of the given command names would be used for on and off",
		Example: `  irbridge resolve KEY_VOLUMEUP KEY_POWER
  irbridge resolve power_on power_off --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pair := irbridge.ResolveNames(args)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), pair)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "on:  %s (%s)\n", orNone(pair.On), pair.OnSource)
			fmt.Fprintf(cmd.OutOrStdout(), "off: %s (%s)\n", orNone(pair.Off), pair.OffSource)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the pair as JSON")
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}

func newProbeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "probe globalcache|lirc",
		Short: "Connect to a controller and print its inventory",
		Example: `  irbridge probe globalcache --host 192.168.1.70
  irbridge probe lirc --host localhost --port 8765`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{irbridge.PlatformGlobalCache, irbridge.PlatformLIRC},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
			defer cancel()

			info, err := probe(ctx, args[0], host, port)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), info)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Controller host name or address")
	cmd.Flags().IntVar(&port, "port", 0, "Controller port (default: 4998 for globalcache, 8765 for lirc)")
	//nolint:errcheck // flag is defined above
	cmd.MarkFlagRequired("host")
	return cmd
}

// probe connects to one controller and reads its inventory.
func probe(ctx context.Context, platform, host string, port int) (irbridge.HardwareInfo, error) {
	switch platform {
	case irbridge.PlatformGlobalCache:
		c, err := globalcache.Connect(ctx, globalcache.Config{Host: host, Port: port})
		if err != nil {
			return irbridge.HardwareInfo{}, fmt.Errorf("connecting to %s: %w", host, err)
		}
		defer c.Close()
		return irbridge.GlobalCacheInventory(ctx, c), nil

	case irbridge.PlatformLIRC:
		c, err := lirc.Connect(ctx, lirc.Config{Host: host, Port: port})
		if err != nil {
			return irbridge.HardwareInfo{}, fmt.Errorf("connecting to %s: %w", host, err)
		}
		defer c.Close()
		return irbridge.LIRCInventory(ctx, c), nil

	default:
		return irbridge.HardwareInfo{}, fmt.Errorf("unknown platform %q (want %s or %s)",
			platform, irbridge.PlatformGlobalCache, irbridge.PlatformLIRC)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "irbridge %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
