package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

const (
	serviceName = "graylogic-irbridge"

	// serviceStopTimeout is how long Stop waits for run to clean up.
	serviceStopTimeout = 15 * time.Second
)

// program adapts run to the service manager's Start/Stop callbacks.
type program struct {
	opts   runOptions
	cancel context.CancelFunc
	done   chan error
	logger service.Logger
}

// Start must not block; the bridge runs in its own goroutine.
func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)

	go func() {
		err := run(ctx, p.opts)
		if err != nil && p.logger != nil {
			//nolint:errcheck // nothing left to report to
			p.logger.Error(err)
		}
		p.done <- err
		if err != nil && ctx.Err() == nil && !service.Interactive() {
			// The service manager restarts us according to its policy.
			os.Exit(1)
		}
	}()
	return nil
}

// Stop cancels run and waits for it to finish cleaning up.
func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(serviceStopTimeout):
		return fmt.Errorf("bridge did not stop within %s", serviceStopTimeout)
	}
	return nil
}

// serviceConfig describes the installed service. The config path is made
// absolute because services do not start in the caller's directory. The
// working directory is the parent of the config directory so the default
// relative paths (./configs, ./data) resolve.
func serviceConfig(flags *cliFlags) (*service.Config, error) {
	cfgPath, err := filepath.Abs(flags.configPath())
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	args := []string{"service", "run", "--config", cfgPath}
	if flags.logLevel != "" {
		args = append(args, "--log-level", flags.logLevel)
	}

	return &service.Config{
		Name:             serviceName,
		DisplayName:      "Gray Logic IR Bridge",
		Description:      "Drives IR blasters and relays and exposes them over MQTT and HTTP.",
		Arguments:        args,
		WorkingDirectory: filepath.Dir(filepath.Dir(cfgPath)),
	}, nil
}

// serviceConfigPath returns the --config value baked into cfg.Arguments.
func serviceConfigPath(cfg *service.Config) string {
	for i, arg := range cfg.Arguments {
		if arg == "--config" && i+1 < len(cfg.Arguments) {
			return cfg.Arguments[i+1]
		}
	}
	return defaultConfigPath
}

func newService(flags *cliFlags) (service.Service, *program, error) {
	cfg, err := serviceConfig(flags)
	if err != nil {
		return nil, nil, err
	}
	prg := &program{opts: runOptions{
		ConfigPath: serviceConfigPath(cfg),
		LogLevel:   flags.logLevel,
	}}
	svc, err := service.New(prg, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating service: %w", err)
	}
	return svc, prg, nil
}

func newServiceCmd(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage irbridge as a system service",
		Long: `Install, remove, start or stop irbridge as a system service
(systemd on Linux, launchd on macOS, the Service Control Manager on Windows).

'service run' is what the installed service executes.`,
	}

	for _, action := range []string{"install", "uninstall", "start", "stop"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: action + " the " + serviceName + " service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, _, err := newService(flags)
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: %s done\n", serviceName, action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run under the service manager",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, prg, err := newService(flags)
			if err != nil {
				return err
			}
			if logger, err := svc.Logger(nil); err == nil {
				prg.logger = logger
			}
			return svc.Run()
		},
	})

	return cmd
}
