package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jacentio/devicekv/coordinator"
	"github.com/jacentio/devicekv/replica"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Scope string
}

// ValidScopes lists the accepted --scope values.
var ValidScopes = []string{"all", "local", "remote"}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print changes as they replicate",
		Long: `Follow the store's change stream and print every change until
interrupted. While watching, this device answers sync requests addressed to
it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Scope, "scope", "all", "which changes to print (all|local|remote)")

	return cmd
}

// parseScope maps a --scope value to a subscribe scope.
func parseScope(s string) (replica.SubscribeScope, error) {
	switch s {
	case "all":
		return replica.SubscribeAll, nil
	case "local":
		return replica.SubscribeLocal, nil
	case "remote":
		return replica.SubscribeRemote, nil
	}
	return 0, fmt.Errorf("invalid scope %q: must be one of %v", s, ValidScopes)
}

// printer writes change notifications one entry per line.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) print(n replica.ChangeNotification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range n.Inserted {
		fmt.Fprintf(p.out, "%s insert %s=%s\n", n.DeviceID, e.Key, e.Value)
	}
	for _, e := range n.Updated {
		fmt.Fprintf(p.out, "%s update %s=%s\n", n.DeviceID, e.Key, e.Value)
	}
	for _, e := range n.Deleted {
		fmt.Fprintf(p.out, "%s delete %s\n", n.DeviceID, e.Key)
	}
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	scope, err := parseScope(opts.Scope)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := opts.open(ctx, cmd)
	if err != nil {
		return err
	}
	s, err := sess.openStore(ctx, coordinator.StoreName, coordinator.DefaultStoreOptions)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	p := &printer{out: cmd.OutOrStdout()}
	if err := s.OnDataChange(scope, p.print); err != nil {
		return err
	}
	if err := s.EnableContinuousSync(ctx, true); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}
