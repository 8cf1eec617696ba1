// Command timekeeper drives the proof-of-history clock standalone, outside
// of a running blockchain node: it can produce a record stream, verify a
// previously persisted one, or stamp a single event onto the end of one.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cobra.OnInitialize(initConfig)

	root := &cobra.Command{
		Use:   "timekeeper",
		Short: "Proof-of-history clock CLI",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file layering defaults under flags and TIMEKEEPER_* env vars")
	root.AddCommand(newRunCmd(), newVerifyCmd(), newStampCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig layers every subcommand's settings the same way: a flag wins if
// set explicitly, otherwise a TIMEKEEPER_<SUBCOMMAND>_<FLAG> environment
// variable, otherwise the optional --config file, otherwise the flag's own
// default.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("path", cfgFile).Msg("config file not read")
		}
	}
	viper.SetEnvPrefix("TIMEKEEPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}
