package cmd

import (
	"context"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ftl/trusdx/trx"
)

var freqCmd = &cobra.Command{
	Use:   "freq [hz]",
	Short: "Read or set the VFO frequency in Hz",
	Run:   runWithEngine(freq),
}

func init() {
	rootCmd.AddCommand(freqCmd)
}

func freq(ctx context.Context, engine *trx.Engine, _ config, args []string) {
	if len(args) > 0 {
		frequency, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			log.Fatalf("invalid frequency %q: %v", args[0], err)
		}
		if err := engine.SetFrequency(frequency); err != nil {
			log.Fatalf("cannot set frequency: %v", err)
		}
	}

	reported := make(frequencyReport, 1)
	engine.Notify(reported)
	engine.Send(trx.NewFrequencyRequest())

	select {
	case frequency := <-reported:
		log.Printf("frequency: %d Hz", frequency)
	case <-time.After(time.Second):
		log.Fatal("the transceiver did not report its frequency")
	case <-ctx.Done():
	}
}

type frequencyReport chan uint64

func (r frequencyReport) SetFrequency(frequency uint64) {
	select {
	case r <- frequency:
	default:
	}
}
