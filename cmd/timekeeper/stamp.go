package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tolelom/timekeeper/poh"
)

func newStampCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stamp <records.json> <event text>",
		Short: "Append one event-stamped tick to an existing record stream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, event := args[0], args[1]

			records, err := loadRecords(path)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("%s has no records to resume from", path)
			}

			last := records[len(records)-1]
			engine := poh.Resume(last.Hash, last.TickIndex+1)
			rec := engine.InsertEvent([]byte(event))
			records = append(records, rec)

			if err := saveRecords(path, records); err != nil {
				return err
			}
			log.Info().Uint64("tick", rec.TickIndex).Str("out", path).Msg("event stamped")
			return nil
		},
	}
	return cmd
}
