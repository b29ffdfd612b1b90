package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ftl/trusdx/trx"
)

var monitorFlags = struct {
	speaker bool
}{}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream receive audio and log all state changes to stdout.",
	Run:   runWithEngine(monitor),
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().BoolVar(&monitorFlags.speaker, "speaker", false, "keep the transceiver's local speaker on")
}

func monitor(ctx context.Context, engine *trx.Engine, _ config, _ []string) {
	engine.Notify(new(stateLogger))

	streaming := trx.StreamingMuted
	if monitorFlags.speaker {
		streaming = trx.StreamingOn
	}
	engine.SetStreaming(streaming)
	engine.Send(trx.NewIDRequest())
	engine.Send(trx.NewFrequencyRequest())
	engine.Send(trx.NewModeRequest())
	engine.SetDirection(trx.DirectionRX)

	<-ctx.Done()
}

type stateLogger struct {
	samples int
}

func (l *stateLogger) Frame(cmd trx.Command) {
	log.Printf("< %s", cmd)
}

func (l *stateLogger) SetFrequency(frequency uint64) {
	log.Printf("frequency: %.3f kHz", float64(frequency)/1000)
}

func (l *stateLogger) SetMode(mode trx.Mode) {
	log.Printf("mode: %s", mode)
}

func (l *stateLogger) SetDirection(direction trx.Direction) {
	log.Printf("direction: %s", direction)
}

func (l *stateLogger) SetStreaming(enabled bool) {
	log.Printf("streaming: %t", enabled)
}

func (l *stateLogger) RXAudio(samples []float32) {
	l.samples += len(samples)
	for l.samples >= trx.InternalRate {
		l.samples -= trx.InternalRate
		log.Printf("rx audio: %d samples/s", trx.InternalRate)
	}
}
