package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ragchat/internal/server"
	"ragchat/internal/session"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve [files...]",
		Short: "Run the HTTP chat server, optionally preloading documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(c.cfg, c.log)
			if err != nil {
				return err
			}
			if _, err := a.ingestAll(ctx, c.log, args); err != nil {
				return err
			}

			if c.cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			opts := server.Options{
				Server:     c.cfg.Server,
				RateLimits: c.cfg.RateLimits,
				Sessions:   session.NewStore(c.cfg.Server.MaxSessions, c.cfg.Server.SessionTTL(), c.cfg.Chat),
				Logger:     c.log.Named("http"),
				Metrics:    a.metrics,
				Gatherer:   a.registry,
			}
			if a.generator != nil {
				opts.Models = a.generator
			}
			srv, err := server.New(a.svc, opts)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			c.log.Info("serving", zap.String("addr", addr), zap.String("upload_dir", c.cfg.Server.UploadDir))
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
