package main

import (
	"fmt"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

var (
	replaySpeed float64

	replayCmd = &cobra.Command{
		Use:     "replay FILE",
		Short:   "Announce a recorded match",
		Long:    paragraph(fmt.Sprintf("\n%s a capture written with --record through the same pipeline as a live match. Packets keep their original spacing, scaled by --speed.", keyword("Replay"))),
		Example: paragraph("audioref --record final.cap\naudioref replay final.cap --speed 4"),
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			opts, err := loadOptions()
			if err != nil {
				return err
			}
			path, err := homedir.Expand(args[0])
			if err != nil {
				return fmt.Errorf("unable to expand capture path: %w", err)
			}
			if opts.Record == path {
				return fmt.Errorf("refusing to record over the capture being replayed: %s", path)
			}
			opts.Replay = path
			opts.ReplaySpeed = replaySpeed
			return run(opts)
		},
	}
)

func init() {
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "playback speed factor (0 replays without delays)")
}
