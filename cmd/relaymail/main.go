package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/relaymail/internal/app"
	"github.com/nhle/relaymail/internal/logging"
	"github.com/nhle/relaymail/internal/model"
	"github.com/nhle/relaymail/internal/relay"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "relaymail:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("relaymail", pflag.ContinueOnError)
	configPath := flags.String("config", model.DefaultConfigPath(), "path to the YAML config file")
	flags.String("base-url", model.DefaultBaseURL, "mail relay base URL")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(*configPath, flags)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting",
		zap.String("relay", cfg.Server.BaseURL),
		zap.String("config", *configPath),
	)

	client := relay.NewClient(cfg.Server.BaseURL,
		relay.WithTimeout(time.Duration(cfg.Server.TimeoutSec)*time.Second),
		relay.WithMaxRetries(cfg.Server.MaxRetries),
		relay.WithLogger(logger),
	)

	m := app.New(app.Deps{
		Config:     cfg,
		ConfigPath: *configPath,
		Client:     client,
		Logger:     logger,
		FS:         afero.NewOsFs(),
	})

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		logger.Error("program exited", zap.Error(err))
		return err
	}
	return nil
}
