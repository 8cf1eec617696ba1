package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tolelom/timekeeper/poh"
)

func newRunCmd() *cobra.Command {
	var (
		seedHex  string
		maxTicks uint64
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the proof-of-history clock and persist the resulting records",
		RunE: func(cmd *cobra.Command, args []string) error {
			seedHex = viper.GetString("run.seed")
			maxTicks = viper.GetUint64("run.max_ticks")
			outPath = viper.GetString("run.out")

			seed, err := resolveSeed(seedHex)
			if err != nil {
				return err
			}

			recv := poh.Spawn(seed, maxTicks)

			bar := progressbar.NewOptions64(int64(maxTicks),
				progressbar.OptionSetDescription("ticking"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
			)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			records := make([]poh.Record, 0, maxTicks)
		collect:
			for {
				select {
				case rec, ok := <-recv.Records():
					if !ok {
						break collect
					}
					records = append(records, rec)
					_ = bar.Add(1)
				case <-sigCh:
					log.Warn().Msg("interrupted, stopping clock and persisting what was collected")
					recv.Close()
					for rec := range recv.Records() {
						records = append(records, rec)
					}
					break collect
				}
			}

			if err := saveRecords(outPath, records); err != nil {
				return err
			}
			log.Info().Int("ticks", len(records)).Str("out", outPath).Msg("records persisted")
			return nil
		},
	}

	cmd.Flags().StringVar(&seedHex, "seed", "", "hex-encoded seed for the chain (random if omitted)")
	cmd.Flags().Uint64Var(&maxTicks, "max-ticks", 1000, "number of ticks to produce before stopping")
	cmd.Flags().StringVar(&outPath, "out", "records.json", "path to write the resulting record stream")
	_ = viper.BindPFlag("run.seed", cmd.Flags().Lookup("seed"))
	_ = viper.BindPFlag("run.max_ticks", cmd.Flags().Lookup("max-ticks"))
	_ = viper.BindPFlag("run.out", cmd.Flags().Lookup("out"))
	return cmd
}

func resolveSeed(seedHex string) ([]byte, error) {
	if seedHex == "" {
		seed := make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("generate random seed: %w", err)
		}
		return seed, nil
	}
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decode --seed: %w", err)
	}
	return seed, nil
}
