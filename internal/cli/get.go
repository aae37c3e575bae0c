package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/devicekv/coordinator"
	"github.com/jacentio/devicekv/dynamo"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, rootOpts, args[0])
		},
	}
}

func runGet(cmd *cobra.Command, opts *RootOptions, key string) error {
	sess, err := opts.open(cmd.Context(), cmd)
	if err != nil {
		return err
	}

	storeOpts := coordinator.DefaultStoreOptions
	storeOpts.CreateIfMissing = false
	s, err := sess.openStore(cmd.Context(), coordinator.StoreName, storeOpts)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	value, err := s.Get(cmd.Context(), key)
	if errors.Is(err, dynamo.ErrNotFound) {
		return fmt.Errorf("key %q not found", key)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}
