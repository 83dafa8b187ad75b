package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/properties"
	"github.com/spf13/cobra"
)

func printBanner() {
	figure1 := figure.NewFigure("SDG", "isometric1", true)
	figure2 := figure.NewFigure("15.3.1", "small", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

func main() {
	if err := properties.Load(); err != nil {
		bannercolor.Red("Error loading .env file: %v", err)
		os.Exit(1)
	}
	log.Setup(properties.LogLevel(), properties.LogFormat())
	defer log.Sync()

	rootCmd := &cobra.Command{
		Use:   "sdg",
		Short: "Land degradation indicator (SDG 15.3.1) for an area of interest",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			printBanner()
		},
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		newRunCmd(),
		newZonalCmd(),
		newJobsCmd(),
		newMatrixCmd(),
		newKendallCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		bannercolor.Red("Error: %v", err)
		os.Exit(1)
	}
}
