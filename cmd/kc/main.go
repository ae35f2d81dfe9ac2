package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/keycastsh/keycast/internal/auth"
	"github.com/keycastsh/keycast/internal/client"
	"github.com/keycastsh/keycast/internal/config"
)

var (
	serverFlag  string
	tokenFlag   string
	dataDirFlag string
)

func main() {
	_ = godotenv.Load()
	setupLogger()

	rootCmd := &cobra.Command{
		Use:   "kc",
		Short: "Drive a code editor remotely with realistic keystrokes",
	}
	rootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", "", "Server to reach (ws://host:port or a unix socket path)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Auth token for the server")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default ~/.keycast)")

	rootCmd.AddCommand(
		serveCmd(),
		pairCmd(),
		openCmd(),
		createCmd(),
		catCmd(),
		saveCmd(),
		closeCmd(),
		typeCmd(),
		execCmd(),
		runCmd(),
		statusCmd(),
		pingCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger() {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func dataDir() string {
	if dataDirFlag != "" {
		return dataDirFlag
	}
	if dir := os.Getenv("KEYCAST_CONFIG"); dir != "" {
		return dir
	}
	return config.DefaultDataDir()
}

// resolveTarget picks where client commands connect: the --server flag, then
// the paired server from the config, then the configured unix socket, then a
// server on this machine's default port.
func resolveTarget(cfg *config.Config, dir string) client.Target {
	token := tokenFlag
	if token == "" {
		token = cfg.Client.AuthToken()
	}

	if serverFlag != "" {
		if strings.HasPrefix(serverFlag, "/") || strings.HasPrefix(serverFlag, ".") {
			return client.Target{Socket: serverFlag}
		}
		return client.Target{URL: serverFlag, Token: token}
	}

	if url := cfg.Client.ServerURL(); url != "" {
		return client.Target{URL: url, Token: token}
	}

	if sock := cfg.Server.SocketPath(); sock != "" {
		return client.Target{Socket: sock}
	}

	// Local server: reuse its own secret so a fresh install works without
	// pairing first.
	if token == "" {
		token = cfg.Auth.ConfiguredToken()
	}
	if token == "" {
		token = auth.LoadSecret(dir)
	}
	return client.Target{
		URL:   fmt.Sprintf("ws://127.0.0.1:%d", cfg.Server.ListenPort()),
		Token: token,
	}
}

func dial() (*client.Client, error) {
	dir := dataDir()
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return client.Dial(context.Background(), resolveTarget(cfg, dir))
}
