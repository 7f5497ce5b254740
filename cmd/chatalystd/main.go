package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/config"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/daemon"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/session"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	principalFlag := flag.String("principal", "", "user to sync on start (overrides config)")
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := config.LoadDotEnv(session.EnvPath()); err != nil {
		fmt.Fprintf(os.Stderr, "error: load %s: %v\n", session.EnvPath(), err)
		os.Exit(1)
	}
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}
	config.ApplyEnv(cfg)
	if *principalFlag != "" {
		cfg.Principal = *principalFlag
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			SessionName: sessionName,
			Config:      cfg,
			Debug:       *debugFlag,
		}),
	)

	app.Run()
}
