package cmd

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ftl/trusdx/trx"
)

var tuneFlags = struct {
	timeout time.Duration
}{}

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Transmit a tuning carrier",
	Run:   runWithEngine(tune),
}

func init() {
	rootCmd.AddCommand(tuneCmd)

	tuneCmd.Flags().DurationVar(&tuneFlags.timeout, "timeout", 10*time.Second, "how long to tune")
}

func tune(ctx context.Context, engine *trx.Engine, _ config, _ []string) {
	if err := engine.SetDirection(trx.DirectionTune); err != nil {
		log.Fatalf("cannot start tuning: %v", err)
	}
	defer engine.SetDirection(trx.DirectionRX)
	log.Printf("tuning for %v", tuneFlags.timeout)

	select {
	case <-ctx.Done():
	case <-time.After(tuneFlags.timeout):
	}
}
