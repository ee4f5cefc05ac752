package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	_ = godotenv.Load()

	var flags configFlags
	rootCmd := &cobra.Command{
		Use:     "perfoverlay",
		Short:   "Page load timings with an AI read-out, in the page and in your terminal",
		Version: version,
	}
	flags.register(rootCmd)

	rootCmd.AddCommand(runCmd(&flags))
	rootCmd.AddCommand(serveCmd(&flags))
	rootCmd.AddCommand(initCmd())

	if err := fang.Execute(context.Background(), rootCmd, fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM)); err != nil {
		os.Exit(1)
	}
}
