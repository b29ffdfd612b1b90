package cmd

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ftl/trusdx/trx"
)

var keyFlags = struct {
	wpm int
}{}

var keyCmd = &cobra.Command{
	Use:   "key <text>",
	Short: "Send the given text as CW",
	Run:   runWithEngine(key),
}

func init() {
	rootCmd.AddCommand(keyCmd)

	keyCmd.Flags().IntVar(&keyFlags.wpm, "wpm", 0, "the keying speed in words per minute")
}

func key(ctx context.Context, engine *trx.Engine, cfg config, args []string) {
	if len(args) < 1 {
		log.Fatal("no text to send, use trusdx key <text>")
	}
	wpm := keyFlags.wpm
	if wpm == 0 {
		wpm = cfg.WPM
	}

	engine.SetMode(trx.ModeCW)
	text := strings.Join(args, " ")
	if err := engine.KeyText(text, wpm); err != nil {
		log.Fatalf("cannot key %q: %v", text, err)
	}
	log.Printf("keying %q at %d WPM", text, wpm)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			engine.CancelKeying()
			return
		case <-ticker.C:
			if !engine.Keying() {
				return
			}
		}
	}
}
