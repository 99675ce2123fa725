package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// サブコマンド名。
const (
	CommandServe       = "serve"
	CommandMigrate     = "migrate"
	CommandHealthcheck = "healthcheck"
)

const defaultPort = "3001"

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。サブコマンドが省略された場合はserveとして起動する。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand はghdashのルートコマンドを生成する。
// wはログとコマンド出力の書き込み先。
func NewRootCommand(w io.Writer) *cobra.Command {
	serve := newServeCommand(w)

	root := &cobra.Command{
		Use:           "ghdash",
		Short:         "GitHub dashboard API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serve.RunE,
	}
	root.SetOut(w)
	root.SetErr(w)

	root.AddCommand(serve, newMigrateCommand(w), newHealthcheckCommand())
	return root
}

func newServeCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   CommandServe,
		Short: "Start the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := Init(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			l.Info("starting application",
				slog.String("command", CommandServe),
				slog.String("port", cfg.ServerPort),
				slog.String("session_strategy", cfg.SessionStrategy),
			)
			return runServe(cmd.Context(), cfg, l)
		},
	}
}

func newMigrateCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   CommandMigrate,
		Short: "Apply database migrations for the postgres session backend",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, l, err := Init(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runMigrate(cfg, l)
		},
	}
}

// newHealthcheckCommand は軽量なヘルスチェックコマンドを生成する。
// 設定の読み込みやログ初期化は行わない。
func newHealthcheckCommand() *cobra.Command {
	var port, target string

	cmd := &cobra.Command{
		Use:   CommandHealthcheck,
		Short: "Probe the local /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if target == "" {
				target = healthcheckURL(port)
			}
			return runHealthcheck(cmd.Context(), target)
		},
	}

	defaultP := os.Getenv("SERVER_PORT")
	if defaultP == "" {
		defaultP = defaultPort
	}
	cmd.Flags().StringVar(&port, "port", defaultP, "port of the local API server")
	cmd.Flags().StringVar(&target, "url", "", "full URL to probe (overrides --port)")
	return cmd
}
