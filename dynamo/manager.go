package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"

	"github.com/jacentio/devicekv/internal/keys"
	"github.com/jacentio/devicekv/replica"
	"github.com/jacentio/devicekv/stream"
)

// API is the subset of *dynamodb.Client used by the engine.
type API interface {
	dynamodb.DescribeTableAPIClient
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTimeToLive(ctx context.Context, params *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
	UpdateContinuousBackups(ctx context.Context, params *dynamodb.UpdateContinuousBackupsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateContinuousBackupsOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

var (
	_ API        = (*dynamodb.Client)(nil)
	_ stream.API = (*dynamodbstreams.Client)(nil)
)

// LoadClients builds DynamoDB and DynamoDB Streams clients from the default
// AWS configuration chain (environment, shared profiles, instance roles).
func LoadClients(ctx context.Context, optFns ...func(*config.LoadOptions) error) (*dynamodb.Client, *dynamodbstreams.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), dynamodbstreams.NewFromConfig(cfg), nil
}

// Manager opens stores of one bundle on behalf of one device.
type Manager struct {
	db       API
	streams  stream.API
	config   Config
	identity replica.Identity
	logger   *slog.Logger
}

// NewManager creates a Manager for identity.
func NewManager(db API, streams stream.API, config Config, identity replica.Identity, logger *slog.Logger) (*Manager, error) {
	if !identity.Valid() {
		return nil, replica.ErrInvalidIdentity
	}
	if logger == nil {
		logger = slog.Default()
	}
	config.validate()
	return &Manager{
		db:       db,
		streams:  streams,
		config:   config,
		identity: identity,
		logger:   logger.With("component", "dynamo", "bundle", identity.BundleName, "device", identity.DeviceID),
	}, nil
}

// NewFactory returns a replica.ManagerFactory backed by NewManager.
func NewFactory(db API, streams stream.API, config Config, logger *slog.Logger) replica.ManagerFactory {
	return func(cfg replica.ManagerConfig) (replica.Manager, error) {
		return NewManager(db, streams, config, cfg.Identity, logger)
	}
}

// TableName returns the bundle's table name.
func (m *Manager) TableName() string {
	return TableName(m.config.TablePrefix, m.identity.BundleName)
}

// OpenStore implements replica.Manager.
func (m *Manager) OpenStore(ctx context.Context, name string, opts replica.Options) (replica.Store, error) {
	s, err := m.Open(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens store name, creating the bundle table first when it is missing
// and opts.CreateIfMissing is set.
func (m *Manager) Open(ctx context.Context, name string, opts replica.Options) (*Store, error) {
	if !keys.ValidStoreName(name) {
		return nil, fmt.Errorf("%w: %q", ErrReservedStoreName, name)
	}
	if opts.StoreType != replica.StoreTypeSingleVersion {
		return nil, fmt.Errorf("%w: %s", replica.ErrUnsupportedStoreType, opts.StoreType)
	}

	table := m.TableName()
	info, err := m.ensureTable(ctx, table, opts)
	if err != nil {
		return nil, err
	}

	m.logger.Info("store opened",
		"store", name,
		"table", table,
		"stream", info.streamARN != "",
		"securityLevel", opts.SecurityLevel.String(),
	)
	return newStore(m, table, name, info.streamARN, opts), nil
}

// TableName builds a valid DynamoDB table name from prefix and bundle.
// Characters DynamoDB does not accept are replaced with '-'.
func TableName(prefix, bundle string) string {
	name := prefix + "-" + bundle
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '-', r == '.':
			return r
		default:
			return '-'
		}
	}, name)
}
