package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <device>...",
		Short: "Sync with other devices",
		Long: `Trigger a PUSH_PULL sync with the given devices and wait for the round
to finish. Devices that do not answer within the engine's sync timeout are
reported by the engine as timed out.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, args)
		},
	}
}

func runSync(cmd *cobra.Command, opts *RootOptions, devices []string) error {
	c, sess, err := startCoordinator(cmd, opts)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	released := make(chan bool, 1)
	c.AwaitSync(func(ok bool) { released <- ok })
	if len(devices) == 1 {
		c.TriggerSyncToDevice(devices[0])
	} else {
		c.TriggerSync(devices)
	}
	return awaitRound(cmd, released, sess.engine.SyncTimeout+syncGrace)
}
