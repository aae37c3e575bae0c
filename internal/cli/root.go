// Package cli implements the devicekv command line tool.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/spf13/cobra"

	"github.com/jacentio/devicekv/dynamo"
	"github.com/jacentio/devicekv/replica"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Bundle     string
	Device     string
	Profile    string
	Region     string
	Verbose    bool
}

// NewRootCommand creates the root command of the devicekv CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "devicekv",
		Short: "Replicated key-value store shared across devices",
		Long: `devicekv reads and writes a key-value store replicated between the
devices of one application bundle through DynamoDB.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Bundle, "bundle", "", "application bundle name")
	cmd.PersistentFlags().StringVar(&opts.Device, "device", "", "ID of this device")
	cmd.PersistentFlags().StringVar(&opts.Profile, "profile", "", "AWS shared config profile")
	cmd.PersistentFlags().StringVar(&opts.Region, "region", "", "AWS region")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// session is everything a command needs to talk to the engine.
type session struct {
	identity replica.Identity
	engine   dynamo.Config
	db       *dynamodb.Client
	streams  *dynamodbstreams.Client
	logger   *slog.Logger
}

// resolve merges the config file with the flags. Flags win.
func (o *RootOptions) resolve() (FileConfig, error) {
	var cfg FileConfig
	if o.ConfigFile != "" {
		var err error
		if cfg, err = LoadConfig(o.ConfigFile); err != nil {
			return FileConfig{}, err
		}
	}
	for _, f := range []struct {
		flag string
		dst  *string
	}{
		{o.Bundle, &cfg.Bundle},
		{o.Device, &cfg.Device},
		{o.Profile, &cfg.Profile},
		{o.Region, &cfg.Region},
	} {
		if f.flag != "" {
			*f.dst = f.flag
		}
	}

	id := replica.Identity{BundleName: cfg.Bundle, DeviceID: cfg.Device}
	if !id.Valid() {
		return FileConfig{}, fmt.Errorf("bundle and device are required (--bundle, --device or config file)")
	}
	return cfg, nil
}

func (o *RootOptions) newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) open(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := o.resolve()
	if err != nil {
		return nil, err
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	db, streams, err := dynamo.LoadClients(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	return &session{
		identity: replica.Identity{BundleName: cfg.Bundle, DeviceID: cfg.Device},
		engine:   cfg.Engine.Dynamo(),
		db:       db,
		streams:  streams,
		logger:   o.newLogger(cmd),
	}, nil
}

// factory returns the manager factory the coordinator uses.
func (s *session) factory() replica.ManagerFactory {
	return dynamo.NewFactory(s.db, s.streams, s.engine, s.logger)
}

// openStore opens name directly on the engine.
func (s *session) openStore(ctx context.Context, name string, opts replica.Options) (*dynamo.Store, error) {
	m, err := dynamo.NewManager(s.db, s.streams, s.engine, s.identity, s.logger)
	if err != nil {
		return nil, err
	}
	return m.Open(ctx, name, opts)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
