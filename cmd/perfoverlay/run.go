package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"perfoverlay/internal/browser"
	"perfoverlay/internal/pagerun"
	"perfoverlay/internal/xslog"
)

func runCmd(flags *configFlags) *cobra.Command {
	var (
		hold  bool
		width int
	)
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Open a page, show the overlay and print the measured timings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := flags.load()
			if err != nil {
				return err
			}
			if hold {
				f := false
				cfg.Browser.Headless = &f
			}
			logger := xslog.New(os.Stderr, cfg.Server.LogLevel)
			ctx := cmd.Context()

			sessions := browser.NewSessionManager(cfg.Browser, logger)
			if err := sessions.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := sessions.Shutdown(context.WithoutCancel(ctx)); err != nil {
					logger.Warn("browser shutdown failed", xslog.Error(err))
				}
			}()

			page, err := sessions.Open(ctx, args[0])
			if err != nil {
				return err
			}

			factory, err := pagerun.NewFactory(cfg, logger)
			if err != nil {
				return err
			}
			run, err := factory.Start(ctx, page)
			if err != nil {
				return err
			}
			defer run.Close()

			if err := run.WaitLoaded(ctx); err != nil {
				return fmt.Errorf("waiting for %s: %w", args[0], err)
			}

			res := runResult{
				Page:      page.Session(),
				Report:    run.Controller.Report(),
				TracePath: run.TracePath(),
			}
			if att, err := run.Facts.Attention(ctx); err == nil {
				res.Attention = &att
			} else {
				logger.Debug("no fact attention", xslog.Error(err))
			}

			out := cmd.OutOrStdout()
			if err := writeResult(out, res, isTerminal(out), width); err != nil {
				return err
			}

			if hold {
				logger.Info("overlay is live; interrupt to exit", xslog.Session(page.ID()))
				<-ctx.Done()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&hold, "hold", false, "Keep a visible browser open with the live overlay until interrupted")
	cmd.Flags().IntVar(&width, "width", 60, "Terminal panel width")
	return cmd
}
