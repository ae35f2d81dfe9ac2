package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/keycastsh/keycast/internal/client"
	"github.com/keycastsh/keycast/internal/config"
	"github.com/keycastsh/keycast/internal/protocol"
	"github.com/keycastsh/keycast/internal/script"
)

// ---------------------------------------------------------------------------
// pairCmd
// ---------------------------------------------------------------------------

func pairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair [url]",
		Short: "Save a server connection after verifying it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				url string
				err error
			)
			if len(args) > 0 {
				url = args[0]
			} else if isatty.IsTerminal(os.Stdin.Fd()) {
				url, err = promptDefault("Server URL", fmt.Sprintf("ws://127.0.0.1:%d", config.DefaultPort))
				if err != nil {
					return err
				}
			}
			if url == "" {
				return fmt.Errorf("server url required")
			}
			url = client.NormalizeURL(url)

			token := tokenFlag
			if token == "" && isatty.IsTerminal(os.Stdin.Fd()) {
				token, err = promptPassword("Token (empty if auth is disabled): ")
				if err != nil {
					return err
				}
				token = strings.TrimSpace(token)
			}

			c, err := client.Dial(context.Background(), client.Target{URL: url, Token: token})
			if err != nil {
				return err
			}
			defer c.Close()
			if _, err := c.Ping(); err != nil {
				return fmt.Errorf("verifying %s: %w", url, err)
			}

			dir := dataDir()
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			cfg.Client.Server = &url
			if token != "" {
				cfg.Client.Token = &token
			} else {
				cfg.Client.Token = nil
			}
			if err := cfg.Save(dir); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "[kc] paired with %s\n", url)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// openCmd
// ---------------------------------------------------------------------------

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Open a file and bring it to the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			msg, err := c.OpenFile(args[0])
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// createCmd
// ---------------------------------------------------------------------------

func createCmd() *cobra.Command {
	var (
		file     string
		useStdin bool
	)

	cmd := &cobra.Command{
		Use:   "create <path>",
		Short: "Create a file (optionally with initial content) and open it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readText(nil, file, useStdin)
			if err != nil {
				return err
			}

			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			msg, err := c.CreateFile(args[0], content)
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read initial content from a local file")
	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read initial content from stdin")

	return cmd
}

// ---------------------------------------------------------------------------
// catCmd
// ---------------------------------------------------------------------------

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat [path]",
		Short: "Print a file's content (the active file when no path is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}

			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.GetFileContent(path)
			if err != nil {
				return err
			}
			fmt.Print(res.Content)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// saveCmd
// ---------------------------------------------------------------------------

func saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Save the active file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			msg, err := c.SaveFile()
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// closeCmd
// ---------------------------------------------------------------------------

func closeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close [path]",
		Short: "Close a file (the active file when no path is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}

			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			msg, err := c.CloseFile(path)
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// typeCmd
// ---------------------------------------------------------------------------

func typeCmd() *cobra.Command {
	var (
		file      string
		useStdin  bool
		mode      string
		speed     float64
		variation float64
		duration  float64
		quick     bool
		line      int
		col       int
	)

	cmd := &cobra.Command{
		Use:   "type [text]",
		Short: "Type text into the active file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, file, useStdin)
			if err != nil {
				return err
			}
			if text == "" && !cmd.Flags().Changed("file") && !useStdin {
				return fmt.Errorf("text required (pass an argument, --file or --stdin)")
			}

			params := protocol.TypeParams{Text: &text, Mode: mode, Quick: quick}
			if cmd.Flags().Changed("speed") {
				params.Speed = &speed
			}
			if cmd.Flags().Changed("variation") {
				params.Variation = &variation
			}
			if cmd.Flags().Changed("duration") {
				params.Duration = &duration
			}
			if cmd.Flags().Changed("line") || cmd.Flags().Changed("col") {
				params.Position = &protocol.Position{Line: line, Character: col}
			}

			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Type(params)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "[kc] typed %d characters\n", res.Inserted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read text from a local file")
	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read text from stdin")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Typing mode: insert, replace or append")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Delay per character in milliseconds")
	cmd.Flags().Float64Var(&variation, "variation", 0, "Delay jitter fraction (0..1)")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Total typing time in milliseconds (overrides --speed)")
	cmd.Flags().BoolVarP(&quick, "quick", "q", false, "Insert all text at once, no pacing")
	cmd.Flags().IntVar(&line, "line", 0, "Cursor line before typing")
	cmd.Flags().IntVar(&col, "col", 0, "Cursor column before typing")

	return cmd
}

// ---------------------------------------------------------------------------
// execCmd
// ---------------------------------------------------------------------------

func execCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "Invoke an editor command on the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Arguments are passed through as JSON; bare words become strings.
			rawArgs := make([]json.RawMessage, 0, len(args)-1)
			for _, a := range args[1:] {
				if json.Valid([]byte(a)) {
					rawArgs = append(rawArgs, json.RawMessage(a))
					continue
				}
				quoted, err := json.Marshal(a)
				if err != nil {
					return fmt.Errorf("encoding argument %q: %w", a, err)
				}
				rawArgs = append(rawArgs, quoted)
			}

			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			result, err := c.RunCommand(args[0], rawArgs)
			if err != nil {
				return err
			}
			if len(result) > 0 && string(result) != "null" {
				fmt.Println(string(result))
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// runCmd
// ---------------------------------------------------------------------------

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script.yaml>",
		Short: "Run a typing script step by step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := script.Load(args[0])
			if err != nil {
				return err
			}

			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "[kc] interrupted")
				cancel()
			}()

			return script.NewRunner(c, slog.Default()).Run(ctx, s)
		},
	}
}

// ---------------------------------------------------------------------------
// statusCmd
// ---------------------------------------------------------------------------

func statusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the server's connections and open documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Status()
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			active := res.ActiveDocument
			if active == "" {
				active = "(none)"
			}
			open := "(none)"
			if len(res.OpenDocuments) > 0 {
				open = strings.Join(res.OpenDocuments, ", ")
			}
			fmt.Printf("%-13s %s\n", "version:", res.Version)
			fmt.Printf("%-13s %d\n", "connections:", res.Connections)
			fmt.Printf("%-13s %s\n", "active:", active)
			fmt.Printf("%-13s %s\n", "open:", open)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// ---------------------------------------------------------------------------
// pingCmd
// ---------------------------------------------------------------------------

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			start := time.Now()
			msg, err := c.Ping()
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s)\n", msg, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// readText resolves a text payload: a positional argument wins, then a local
// file, then stdin. No source yields the empty string.
func readText(args []string, file string, useStdin bool) (string, error) {
	switch {
	case len(args) > 0:
		return args[0], nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", file, err)
		}
		return string(data), nil
	case useStdin:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	return "", nil
}
