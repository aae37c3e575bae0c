package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacentio/devicekv/coordinator"
)

// syncGrace is added to the engine's sync timeout when waiting for a round.
const syncGrace = 5 * time.Second

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	Target string
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Write a key",
		Long: `Write a key to the local store.

With --target the write is followed by a sync with that device and the
command waits for the sync round to finish.

Example:
  devicekv put --bundle com.example.notes --device tablet greeting hello
  devicekv put -c devicekv.yaml --target phone greeting hello`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "device to sync with after the write")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, rootOpts, args[0])
		},
	}
}

// startCoordinator opens the shared store through a Coordinator.
func startCoordinator(cmd *cobra.Command, opts *RootOptions) (*coordinator.Coordinator, *session, error) {
	sess, err := opts.open(cmd.Context(), cmd)
	if err != nil {
		return nil, nil, err
	}

	c := coordinator.New(sess.factory(), coordinator.WithLogger(sess.logger))
	c.Initialize(cmd.Context(), sess.identity, nil)
	if c.State() != coordinator.StateReady {
		return nil, nil, fmt.Errorf("store %s did not open (run with -v for details)", coordinator.StoreName)
	}
	return c, sess, nil
}

func runPut(cmd *cobra.Command, opts *PutOptions, key, value string) error {
	c, sess, err := startCoordinator(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	var released chan bool
	written := make(chan bool, 1)
	writeOpts := []coordinator.WriteOption{
		coordinator.WithCallback(func(ok bool) { written <- ok }),
	}
	if opts.Target != "" {
		released = make(chan bool, 1)
		c.AwaitSync(func(ok bool) { released <- ok })
		writeOpts = append(writeOpts, coordinator.WithTargetDevice(opts.Target))
	}

	c.Put(cmd.Context(), key, value, writeOpts...)
	if !<-written {
		return fmt.Errorf("put %q failed", key)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "put %s\n", key)

	if released == nil {
		return nil
	}
	return awaitRound(cmd, released, coordinator.SyncSettleDelay+sess.engine.SyncTimeout+syncGrace)
}

func runDelete(cmd *cobra.Command, opts *RootOptions, key string) error {
	c, _, err := startCoordinator(cmd, opts)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	done := make(chan bool, 1)
	c.Delete(cmd.Context(), key, coordinator.WithCallback(func(ok bool) { done <- ok }))
	if !<-done {
		return fmt.Errorf("delete %q failed", key)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
	return nil
}

// awaitRound waits for the next sync completion.
func awaitRound(cmd *cobra.Command, released <-chan bool, timeout time.Duration) error {
	select {
	case <-released:
		fmt.Fprintln(cmd.OutOrStdout(), "sync round finished")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("no sync completion within %s", timeout)
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}
}
