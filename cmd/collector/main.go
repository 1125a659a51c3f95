// Command collector runs the market-data ingestion fabric (spec §1-§6):
// it loads and validates a YAML config, wires every exchange's WireAdapter
// and OrderBookManager into a Supervisor, serves health/metrics over HTTP,
// and runs until a signal or an unrecoverable Supervisor escalation.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/marketprism/ingestion-fabric/config"
	"github.com/marketprism/ingestion-fabric/log"
	"github.com/marketprism/ingestion-fabric/metrics"
)

// Exit codes, spec §6.
const (
	exitOK            = 0
	exitConfigInvalid = 2
	exitFatalStartup  = 3
)

func main() {
	app := &cli.App{
		Name:  "collector",
		Usage: "multi-exchange market-data ingestion fabric",
		Commands: []*cli.Command{
			runCommand(),
			validateCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatalStartup)
	}
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to the YAML config file", EnvVars: []string{"MARKETPRISM_CONFIG"}}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "load and validate the config without starting the collector",
		Flags: []cli.Flag{configFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitConfigInvalid)
			}
			if err := config.Validate(cfg); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitConfigInvalid)
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start the collector",
		Flags: []cli.Flag{configFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitConfigInvalid)
			}
			if err := config.Validate(cfg); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitConfigInvalid)
			}
			log.SetLevel(log.ParseLevel(cfg.LogLevel))

			m, err := metrics.New()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFatalStartup)
			}
			defer m.Shutdown(context.Background())

			sup, err := buildSupervisor(cfg)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFatalStartup)
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.HandleFunc("/healthz", healthHandler(sup))
			httpServer := &http.Server{Addr: ":9090", Handler: mux}
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf(log.Supervisor, "health/metrics server stopped: %v", err)
				}
			}()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := sup.Run(ctx)
			_ = httpServer.Close()
			if runErr != nil {
				fmt.Fprintln(os.Stderr, runErr)
				os.Exit(exitFatalStartup)
			}
			return nil
		},
	}
}
