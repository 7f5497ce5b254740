package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/api"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/session"
)

var (
	sessionFlag string
	jsonFlag    bool
	timeoutFlag time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "chatalystctl",
	Short:         "Control a running chatalystd session",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "session name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 10*time.Second, "per-call timeout")
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// connect dials the daemon of the selected session.
func connect() (*api.Client, error) {
	sessionName := session.Resolve(sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		return nil, err
	}
	c, err := api.Dial(session.SocketPath(sessionName))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon for session %q: %w", sessionName, err)
	}
	return c, nil
}

// run dials, calls fn with a bounded context and closes the connection.
func run(fn func(ctx context.Context, c *api.Client) error) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(rootCmd.Context(), timeoutFlag)
	defer cancel()
	return fn(ctx, c)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
