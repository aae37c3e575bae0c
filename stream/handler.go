package stream

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/devicekv/internal/keys"
)

// Handler processes DynamoDB stream events delivered by AWS Lambda.
type Handler struct {
	sink   Sink
	logger *slog.Logger
}

// NewHandler creates a new stream handler delivering to sink.
func NewHandler(sink Sink, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sink:   sink,
		logger: logger,
	}
}

// HandleStream decodes event and delivers it to the sink as one batch.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleStream(ctx context.Context, event events.DynamoDBEvent) error {
	batch := FromLambda(event)
	if batch.Empty() {
		return nil
	}

	h.logger.Debug("delivering stream batch",
		"records", len(event.Records),
		"changes", len(batch.Records),
		"sync", len(batch.Sync),
	)
	if err := h.sink.Deliver(ctx, batch); err != nil {
		h.logger.Error("failed to deliver stream batch", "error", err)
		return err // Will retry, eventually DLQ
	}
	return nil
}

// FromLambda decodes the records of a Lambda stream event.
func FromLambda(event events.DynamoDBEvent) Batch {
	var b Batch
	for _, r := range event.Records {
		b.add(r.EventName,
			lambdaImage(r.Change.Keys),
			lambdaImage(r.Change.OldImage),
			lambdaImage(r.Change.NewImage),
		)
	}
	return b
}

func lambdaImage(img map[string]events.DynamoDBAttributeValue) image {
	return image{
		pk:     getStringAttr(img, keys.AttrPK),
		sk:     getStringAttr(img, keys.AttrSK),
		value:  getStringAttr(img, keys.AttrValue),
		origin: getStringAttr(img, keys.AttrOrigin),
		mode:   getStringAttr(img, keys.AttrMode),
		ttl:    getNumberAttr(img, keys.AttrTTL),
	}
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeString {
			return v.String()
		}
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}
