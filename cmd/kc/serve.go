package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/keycastsh/keycast/internal/auth"
	"github.com/keycastsh/keycast/internal/config"
	"github.com/keycastsh/keycast/internal/editor"
	"github.com/keycastsh/keycast/internal/server"
	"github.com/keycastsh/keycast/internal/typing"
)

// ---------------------------------------------------------------------------
// serveCmd
// ---------------------------------------------------------------------------

func serveCmd() *cobra.Command {
	var (
		port   int
		socket string
		stdio  bool
		auto   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the keycast server",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := dataDir()
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}

			// Host startup hooks call `kc serve --auto`; a disabled
			// auto_start makes that a silent no-op.
			if auto && !cfg.Server.AutoStartEnabled() {
				return nil
			}

			if cmd.Flags().Changed("port") {
				cfg.Server.Port = &port
			}
			if cmd.Flags().Changed("socket") {
				cfg.Server.Socket = &socket
			}

			gate, secret, err := buildGate(cfg, dir)
			if err != nil {
				return err
			}

			srv := server.New(server.Options{
				Gate:    gate,
				Surface: editor.NewWorkspace(),
				Defaults: typing.Defaults{
					Speed:     cfg.Typing.SpeedDelay(),
					Variation: cfg.Typing.JitterFraction(),
				},
				Logger: slog.Default(),
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "[kc] shutting down...")
				cancel()
			}()

			if stdio {
				return srv.RunStdio(ctx, os.Stdin, os.Stdout)
			}

			announce(cfg.Server.ListenPort(), cfg.Server.SocketPath(), secret, gate.Enabled())

			addr := fmt.Sprintf(":%d", cfg.Server.ListenPort())
			if err := srv.Run(ctx, addr, cfg.Server.SocketPath()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "WebSocket listen port")
	cmd.Flags().StringVar(&socket, "socket", "", "Unix socket path for local clients")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "Serve a single session over stdin/stdout")
	cmd.Flags().BoolVar(&auto, "auto", false, "Start only when auto_start is enabled")

	return cmd
}

// buildGate assembles the connection gate from the auth settings: an explicit
// token wins, otherwise one is generated and persisted under the data dir.
// Auth enabled with no obtainable secret leaves a gate that rejects everything.
func buildGate(cfg *config.Config, dir string) (*auth.Gate, string, error) {
	if !cfg.Auth.IsEnabled() {
		return auth.NewGate(false, ""), "", nil
	}
	if token := cfg.Auth.ConfiguredToken(); token != "" {
		return auth.NewGate(true, token), token, nil
	}
	if cfg.Auth.AutoGenerateEnabled() {
		secret, err := auth.LoadOrGenerateSecret(dir)
		if err != nil {
			return nil, "", err
		}
		return auth.NewGate(true, secret), secret, nil
	}
	return auth.NewGate(true, ""), "", nil
}

// announce prints the connection details to stderr. This is the only place
// the token is ever surfaced; it must never reach the log stream.
func announce(port int, socketPath, secret string, gated bool) {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "127.0.0.1"
	}
	url := fmt.Sprintf("ws://%s:%d", host, port)

	fmt.Fprintf(os.Stderr, "[kc] listening on %s\n", url)
	if socketPath != "" {
		fmt.Fprintf(os.Stderr, "[kc] local socket at %s\n", socketPath)
	}

	if !gated {
		fmt.Fprintln(os.Stderr, "[kc] WARNING: authentication is disabled")
		return
	}
	if secret == "" {
		fmt.Fprintln(os.Stderr, "[kc] WARNING: auth is enabled with no token; every connection will be rejected")
		return
	}

	fmt.Fprintf(os.Stderr, "[kc] token: %s\n", secret)
	fmt.Fprintf(os.Stderr, "[kc] pair with: kc pair %s --token %s\n", url, secret)

	if isatty.IsTerminal(os.Stderr.Fd()) {
		if qr, err := qrcode.New(fmt.Sprintf("%s/?token=%s", url, secret), qrcode.Medium); err == nil {
			fmt.Fprintln(os.Stderr, qr.ToSmallString(false))
		}
	}
}
