package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api"
	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/shell"
)

func main() {
	flags := pflag.NewFlagSet("helpdesk", pflag.ExitOnError)
	configPath := flags.String("config", "", "YAML config file")
	dataDir := flags.String("data-dir", "", "directory for users.jsonl and tickets.jsonl")
	logDir := flags.String("log-dir", "", "directory for audit.log")
	logLevel := flags.String("log-level", "", "operational log level (debug, info, warn, error)")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: helpdesk [flags] [verify-audit]\n\n")
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *logDir != "" {
		cfg.Storage.LogDir = *logDir
	}
	if *logLevel != "" {
		cfg.Logger.Level = *logLevel
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// After the first signal the default handlers return, so a second one
	// ends the process even if shutdown hangs.
	context.AfterFunc(ctx, stop)

	switch flags.Arg(0) {
	case "":
		os.Exit(runShell(ctx, cfg, logger))
	case "verify-audit":
		os.Exit(verifyAudit(ctx, cfg))
	default:
		flags.Usage()
		os.Exit(2)
	}
}

func runShell(ctx context.Context, cfg *config.Config, logger *zap.Logger) int {
	cmds, err := api.Build(cfg, logger)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		fmt.Fprintln(os.Stderr, "helpdesk: could not start; see the log for details")
		return 1
	}

	metrics := observability.NewMetrics()
	sh := shell.New(cmds, os.Stdin, os.Stdout,
		shell.WithTerminal(int(os.Stdin.Fd())),
		shell.WithMetrics(metrics),
		shell.WithLogger(logger.Named("shell")),
	)
	err = sh.Run(ctx)
	for _, st := range metrics.Snapshot() {
		logger.Debug("command stats",
			zap.String("command", st.Command),
			zap.Int64("count", st.Count),
			zap.Int64("errors", st.Errors),
			zap.Duration("total", st.Total))
	}
	if err != nil && ctx.Err() == nil {
		logger.Error("shell stopped", zap.Error(err))
		return 1
	}
	return 0
}

// verifyAudit checks the audit chain offline and exits non-zero when it is
// broken.
func verifyAudit(ctx context.Context, cfg *config.Config) int {
	path := cfg.Storage.AuditPath()
	result, err := audit.Verify(ctx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "helpdesk: read %s: %v\n", path, err)
		return 1
	}
	if !result.Valid {
		fmt.Printf("%s: broken at line %d: %s\n", path, result.BrokenAt, result.Reason)
		return 1
	}
	fmt.Printf("%s: %d entries, chain intact\n", path, result.Entries)
	return 0
}
