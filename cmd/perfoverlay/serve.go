package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"perfoverlay/internal/browser"
	"perfoverlay/internal/mcp"
	"perfoverlay/internal/pagerun"
	"perfoverlay/internal/xslog"
)

func serveCmd(flags *configFlags) *cobra.Command {
	var ssePort int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the overlay as MCP tools over stdio or SSE",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, wsDir, err := flags.load()
			if err != nil {
				return err
			}
			if ssePort != 0 {
				cfg.MCP.SSEPort = ssePort
			}
			ctx := cmd.Context()

			// stdout carries the protocol in stdio mode.
			logger, closer := fileLogger(cfg)
			defer closer.Close()
			if wsDir != "" {
				logger.Info("workspace config loaded", "dir", wsDir)
			}

			sessions := browser.NewSessionManager(cfg.Browser, logger)
			if err := sessions.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := sessions.Shutdown(context.WithoutCancel(ctx)); err != nil {
					logger.Warn("browser shutdown failed", xslog.Error(err))
				}
			}()

			factory, err := pagerun.NewFactory(cfg, logger)
			if err != nil {
				return err
			}
			server, err := mcp.NewServer(cfg, mcp.SessionBrowser{Sessions: sessions}, factory, logger)
			if err != nil {
				return err
			}
			defer server.Close()

			if cfg.MCP.SSEPort > 0 {
				logger.Info("starting MCP SSE server", "port", cfg.MCP.SSEPort)
				err = server.StartSSE(ctx, cfg.MCP.SSEPort)
			} else {
				logger.Info("starting MCP stdio server")
				err = server.Start(ctx)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ssePort, "sse-port", 0, "Serve over SSE on this port instead of stdio")
	return cmd
}
