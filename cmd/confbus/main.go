// Confbus CLI — публикует события аккаунтов и решения по докладам,
// управляет топологией брокера и показывает проекцию.
//
// Использование:
//
//	confbus [--rabbitmq-url URL] [--db-url DSN] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	account       Публикация событий аккаунтов
//	presentation  Решения по докладам
//	topology      Топология RabbitMQ
//	projection    Проекция аккаунтов (PostgreSQL)
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/confbus/internal/cli"
	"github.com/shaiso/confbus/internal/config"
	"github.com/shaiso/confbus/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	var (
		rabbitURL  string
		dbURL      string
		jsonOutput bool
		verbose    bool
		timeout    time.Duration
	)

	rootCmd := &cobra.Command{
		Use:           "confbus",
		Short:         "Confbus CLI — conference messaging tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&rabbitURL, "rabbitmq-url", cfg.RabbitMQURL, "RabbitMQ URL")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", cfg.DBURL, "PostgreSQL DSN for projection commands")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log broker activity to stderr")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall command timeout")

	var client *cli.Client
	backendFn := func() cli.Backend {
		if client == nil {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			if verbose {
				logger = telemetry.NewLogger(os.Stderr, telemetry.ParseLevel(cfg.LogLevel), "text")
			}
			client = cli.NewClient(cli.ClientConfig{
				RabbitMQURL: rabbitURL,
				DBURL:       dbURL,
				Logger:      logger,
			})
		}
		return client
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewAccountCmd(backendFn, outputFn),
		cli.NewPresentationCmd(backendFn, outputFn),
		cli.NewTopologyCmd(backendFn, outputFn),
		cli.NewProjectionCmd(backendFn, outputFn),
	)

	// Таймаут известен только после разбора флагов.
	var cancelTimeout context.CancelFunc = func() {}
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		cancelTimeout = cancel
		cmd.SetContext(ctx)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = rootCmd.ExecuteContext(ctx)
	cancelTimeout()
	stop()

	if client != nil {
		client.Close()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
