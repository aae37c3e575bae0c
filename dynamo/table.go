package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/jacentio/devicekv/internal/keys"
	"github.com/jacentio/devicekv/replica"
)

// tableInfo is what a store needs to know about its table.
type tableInfo struct {
	streamARN string
}

// ensureTable describes table, creating it when allowed, waits until it is
// active, makes sure TTL is on and applies the backup option.
func (m *Manager) ensureTable(ctx context.Context, table string, opts replica.Options) (tableInfo, error) {
	out, err := m.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})

	var notFound *types.ResourceNotFoundException
	switch {
	case err == nil:
	case errors.As(err, &notFound):
		if !opts.CreateIfMissing {
			return tableInfo{}, fmt.Errorf("%w: table %s", replica.ErrStoreNotFound, table)
		}
		if err := m.createTable(ctx, table, opts); err != nil {
			return tableInfo{}, err
		}
		out = nil
	default:
		return tableInfo{}, fmt.Errorf("describe table %s: %w", table, err)
	}

	if out == nil || out.Table == nil || out.Table.TableStatus != types.TableStatusActive {
		waiter := dynamodb.NewTableExistsWaiter(m.db)
		out, err = waiter.WaitForOutput(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(table),
		}, m.config.TableWaitTimeout)
		if err != nil {
			return tableInfo{}, fmt.Errorf("wait for table %s: %w", table, err)
		}
	}

	if err := m.ensureTTL(ctx, table); err != nil {
		return tableInfo{}, err
	}

	if opts.Encrypt && out.Table.SSEDescription == nil {
		m.logger.Warn("table exists without encryption at rest", "table", table)
	}

	if opts.Backup {
		_, err := m.db.UpdateContinuousBackups(ctx, &dynamodb.UpdateContinuousBackupsInput{
			TableName: aws.String(table),
			PointInTimeRecoverySpecification: &types.PointInTimeRecoverySpecification{
				PointInTimeRecoveryEnabled: aws.Bool(true),
			},
		})
		if err != nil {
			return tableInfo{}, fmt.Errorf("enable backups on %s: %w", table, err)
		}
	}

	return tableInfo{streamARN: aws.ToString(out.Table.LatestStreamArn)}, nil
}

// createTable creates the bundle table. A table created concurrently by
// another device is not an error.
func (m *Manager) createTable(ctx context.Context, table string, opts replica.Options) error {
	m.logger.Info("creating table", "table", table, "encrypt", opts.Encrypt)

	in := &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(keys.AttrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(keys.AttrSK), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(keys.AttrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(keys.AttrSK), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
		StreamSpecification: &types.StreamSpecification{
			StreamEnabled:  aws.Bool(true),
			StreamViewType: types.StreamViewTypeNewAndOldImages,
		},
	}
	if opts.Encrypt {
		in.SSESpecification = &types.SSESpecification{
			Enabled: aws.Bool(true),
			SSEType: types.SSETypeKms,
		}
	}

	if _, err := m.db.CreateTable(ctx, in); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceInUseException" {
			m.logger.Info("table created concurrently", "table", table)
			return nil
		}
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// ensureTTL turns on expiry of the ttl attribute unless it is already on.
// Tables whose creator stopped before enabling it are repaired here.
func (m *Manager) ensureTTL(ctx context.Context, table string) error {
	enabled, err := m.ttlEnabled(ctx, table)
	if err != nil || enabled {
		return err
	}

	_, err = m.db.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(keys.AttrTTL),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		// Another device may have enabled it in the meantime.
		if enabled, derr := m.ttlEnabled(ctx, table); derr == nil && enabled {
			return nil
		}
		return fmt.Errorf("enable ttl on %s: %w", table, err)
	}
	m.logger.Info("enabled ttl", "table", table)
	return nil
}

func (m *Manager) ttlEnabled(ctx context.Context, table string) (bool, error) {
	out, err := m.db.DescribeTimeToLive(ctx, &dynamodb.DescribeTimeToLiveInput{
		TableName: aws.String(table),
	})
	if err != nil {
		return false, fmt.Errorf("describe ttl on %s: %w", table, err)
	}
	desc := out.TimeToLiveDescription
	if desc == nil {
		return false, nil
	}
	switch desc.TimeToLiveStatus {
	case types.TimeToLiveStatusEnabled, types.TimeToLiveStatusEnabling:
		if name := aws.ToString(desc.AttributeName); name != keys.AttrTTL {
			m.logger.Warn("ttl enabled on another attribute", "table", table, "attribute", name)
		}
		return true, nil
	}
	return false, nil
}
