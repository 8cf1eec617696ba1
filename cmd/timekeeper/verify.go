package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tolelom/timekeeper/poh"
)

func newVerifyCmd() *cobra.Command {
	var toleranceMs int64

	cmd := &cobra.Command{
		Use:   "verify <records.json>",
		Short: "Check a persisted record stream's hash-chain integrity and timestamp drift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toleranceMs = viper.GetInt64("verify.tolerance_ms")

			records, err := loadRecords(args[0])
			if err != nil {
				return err
			}

			chainOK := poh.VerifyRecords(records)
			timeOK := poh.VerifyTimestamps(records, toleranceMs)

			fmt.Printf("records:        %d\n", len(records))
			fmt.Printf("chain integrity: %s\n", pass(chainOK))
			fmt.Printf("timestamp drift: %s (tolerance %dms)\n", pass(timeOK), toleranceMs)

			if !chainOK || !timeOK {
				return fmt.Errorf("verification failed")
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&toleranceMs, "tolerance-ms", poh.TimestampToleranceMS, "allowed drift between expected and recorded tick timestamps")
	_ = viper.BindPFlag("verify.tolerance_ms", cmd.Flags().Lookup("tolerance-ms"))
	return cmd
}

func pass(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
