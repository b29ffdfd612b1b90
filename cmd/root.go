package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ftl/trusdx/trx"
)

var rootFlags = struct {
	port   string
	baud   int
	remote string
	config string
	debug  bool
}{}

var rootCmd = &cobra.Command{
	Use:   "trusdx",
	Short: "Drive a (tr)uSDX transceiver over its single-cable transport.",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.port, "port", "", "the serial port of the transceiver")
	rootCmd.PersistentFlags().IntVar(&rootFlags.baud, "baud", 0, "the baud rate of the serial port")
	rootCmd.PersistentFlags().StringVar(&rootFlags.remote, "remote", "", "a websocket URL bridging the serial port of a remote machine")
	rootCmd.PersistentFlags().StringVar(&rootFlags.config, "config", "", "a configuration file with the connection settings")
	rootCmd.PersistentFlags().BoolVar(&rootFlags.debug, "debug", false, "log the CAT traffic")
}

type config struct {
	Port   string `yaml:"port"`
	Baud   int    `yaml:"baud"`
	Remote string `yaml:"remote"`
	WPM    int    `yaml:"wpm"`
}

func loadConfig() config {
	result := config{
		Port: "/dev/ttyUSB0",
		Baud: trx.DefaultBaudRate,
		WPM:  20,
	}
	if rootFlags.config != "" {
		file, err := os.ReadFile(rootFlags.config)
		if err != nil {
			log.Fatalf("cannot read configuration file: %v", err)
		}
		if err := yaml.Unmarshal(file, &result); err != nil {
			log.Fatalf("cannot parse configuration file: %v", err)
		}
	}
	if rootFlags.port != "" {
		result.Port = rootFlags.port
	}
	if rootFlags.baud != 0 {
		result.Baud = rootFlags.baud
	}
	if rootFlags.remote != "" {
		result.Remote = rootFlags.remote
	}
	return result
}

func openLink(cfg config) (trx.Link, error) {
	if cfg.Remote != "" {
		return trx.DialWebsocket(cfg.Remote)
	}
	return trx.OpenSerial(cfg.Port, cfg.Baud)
}

func runWithEngine(f func(context.Context, *trx.Engine, config, []string)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if rootFlags.debug {
			log.SetLevel(log.DebugLevel)
		}
		cfg := loadConfig()

		ctx, cancel := context.WithCancel(context.Background())
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		go handleCancelation(signals, cancel)

		link, err := openLink(cfg)
		if err != nil {
			log.Fatalf("cannot connect to the transceiver: %v", err)
		}
		engine := trx.Open(link)
		defer engine.Close()
		engine.WhenDisconnected(cancel)

		f(ctx, engine, cfg, args)
	}
}

func handleCancelation(signals <-chan os.Signal, cancel context.CancelFunc) {
	count := 0
	for range signals {
		count++
		if count == 1 {
			cancel()
		} else {
			log.Fatal("hard shutdown")
		}
	}
}
