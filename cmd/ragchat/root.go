package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ragchat/internal/config"
	"ragchat/internal/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfgPath string
	cfg     *config.AppConfig
	log     *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "ragchat",
		Short:         "Chat with your PDFs and text files using retrieval-augmented generation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.cfgPath, "config", "", "Path to YAML config file (default ./config.yaml, then ~/.config/ragchat/config.yaml)")

	root.AddCommand(
		newServeCmd(c),
		newIngestCmd(c),
		newQueryCmd(c),
		newChatCmd(c),
		newInitConfigCmd(c),
	)
	return root
}

func (c *cli) setup() error {
	_ = godotenv.Load()

	var err error
	if c.cfgPath == "" {
		c.cfg, _, err = config.LoadDefault()
	} else {
		c.cfg, err = config.Load(c.cfgPath)
	}
	if err != nil {
		return err
	}

	c.log, err = logger.New(logger.Config{
		Level:            c.cfg.Log.Level,
		Format:           c.cfg.Log.Format,
		OutputPaths:      c.cfg.Log.OutputPaths,
		ErrorOutputPaths: c.cfg.Log.ErrorOutputPaths,
	})
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(c.log)
	return nil
}
