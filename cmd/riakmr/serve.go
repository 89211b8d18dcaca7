package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/danmuck/riakmr/internal/bridge"
	"github.com/danmuck/riakmr/internal/config"
	"github.com/danmuck/riakmr/internal/node"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if listen != "" {
				cfg.Bridge.ListenAddr = listen
			}
			if err := config.ValidateBridge(cfg); err != nil {
				return err
			}
			gin.SetMode(gin.ReleaseMode)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			srv := bridge.New(cfg)
			announce(srv)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (defaults to [bridge].listen_addr)")
	return cmd
}

func announce(n node.Node) {
	log.Info().Str("node", n.NodeID()).Str("kind", n.Kind()).Int("routes", len(n.HTTPRouter().Routes())).Msg("riakmr serve")
}
