// Command streamhandler is an AWS Lambda function attached to a devicekv
// table's stream. It joins the bundle as an always-online device: sync
// requests addressed to it are acknowledged from the stream.
//
// Environment:
//
//	DEVICEKV_BUNDLE        application bundle (required)
//	DEVICEKV_DEVICE        device ID of the function (default "cloud")
//	DEVICEKV_STORE         store name (default the coordinator store)
//	DEVICEKV_TABLE_PREFIX  table prefix (default "devicekv")
//	DEVICEKV_NUM_SHARDS    sync partition shards (default 1)
package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/devicekv/coordinator"
	"github.com/jacentio/devicekv/dynamo"
	"github.com/jacentio/devicekv/replica"
	"github.com/jacentio/devicekv/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	identity := replica.Identity{
		BundleName: os.Getenv("DEVICEKV_BUNDLE"),
		DeviceID:   envOr("DEVICEKV_DEVICE", "cloud"),
	}
	cfg := dynamo.DefaultConfig()
	cfg.TablePrefix = envOr("DEVICEKV_TABLE_PREFIX", cfg.TablePrefix)
	if n, err := strconv.Atoi(os.Getenv("DEVICEKV_NUM_SHARDS")); err == nil {
		cfg.NumShards = n
	}

	ctx := context.Background()
	db, streams, err := dynamo.LoadClients(ctx)
	if err != nil {
		logger.Error("failed to load AWS clients", "error", err)
		os.Exit(1)
	}

	m, err := dynamo.NewManager(db, streams, cfg, identity, logger)
	if err != nil {
		logger.Error("failed to create manager", "error", err)
		os.Exit(1)
	}

	opts := coordinator.DefaultStoreOptions
	opts.CreateIfMissing = false
	store, err := m.Open(ctx, envOr("DEVICEKV_STORE", coordinator.StoreName), opts)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	lambda.Start(stream.NewHandler(store, logger).HandleStream)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
