package stream_test

import (
	"strconv"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/jacentio/devicekv/internal/keys"
	"github.com/jacentio/devicekv/replica"
	"github.com/jacentio/devicekv/stream"
)

// item describes one image in a test record. A nil *item means no image.
type item struct {
	value  string
	origin string
	ttl    int64
}

func lambdaImage(pk, sk string, it *item) map[string]events.DynamoDBAttributeValue {
	if it == nil {
		return nil
	}
	img := map[string]events.DynamoDBAttributeValue{
		"pk":     events.NewStringAttribute(pk),
		"sk":     events.NewStringAttribute(sk),
		"value":  events.NewStringAttribute(it.value),
		"origin": events.NewStringAttribute(it.origin),
	}
	if it.ttl != 0 {
		img["ttl"] = events.NewNumberAttribute(strconv.FormatInt(it.ttl, 10))
	}
	return img
}

func streamsImage(pk, sk string, it *item) map[string]types.AttributeValue {
	if it == nil {
		return nil
	}
	img := map[string]types.AttributeValue{
		"pk":     &types.AttributeValueMemberS{Value: pk},
		"sk":     &types.AttributeValueMemberS{Value: sk},
		"value":  &types.AttributeValueMemberS{Value: it.value},
		"origin": &types.AttributeValueMemberS{Value: it.origin},
	}
	if it.ttl != 0 {
		img["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(it.ttl, 10)}
	}
	return img
}

func lambdaRecord(event, pk, sk string, before, after *item) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventName: event,
		Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{
				"pk": events.NewStringAttribute(pk),
				"sk": events.NewStringAttribute(sk),
			},
			OldImage: lambdaImage(pk, sk, before),
			NewImage: lambdaImage(pk, sk, after),
		},
	}
}

func streamsRecord(event, pk, sk string, before, after *item) types.Record {
	return types.Record{
		EventName: types.OperationType(event),
		Dynamodb: &types.StreamRecord{
			Keys: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: pk},
				"sk": &types.AttributeValueMemberS{Value: sk},
			},
			OldImage: streamsImage(pk, sk, before),
			NewImage: streamsImage(pk, sk, after),
		},
	}
}

// --- Classification Tests ---

var classificationTests = []struct {
	name     string
	event    string
	before   *item
	after    *item
	expected stream.Op // 0 means ignored
	value    string
	origin   string
}{
	{"insert", "INSERT", nil, &item{value: "1", origin: "phone"}, stream.OpInsert, "1", "phone"},
	{"update", "MODIFY", &item{value: "1", origin: "phone"}, &item{value: "2", origin: "watch"}, stream.OpUpdate, "2", "watch"},
	{"tombstone", "MODIFY", &item{value: "1", origin: "phone"}, &item{value: "1", origin: "watch", ttl: 100}, stream.OpDelete, "1", "watch"},
	{"revival", "MODIFY", &item{value: "1", origin: "phone", ttl: 100}, &item{value: "3", origin: "tablet"}, stream.OpInsert, "3", "tablet"},
	{"tombstone touched", "MODIFY", &item{value: "1", ttl: 100}, &item{value: "1", ttl: 200}, 0, "", ""},
	{"tombstone reaped", "REMOVE", &item{value: "1", origin: "watch", ttl: 100}, nil, 0, "", ""},
	{"live item removed", "REMOVE", &item{value: "1", origin: "phone"}, nil, stream.OpDelete, "1", "phone"},
	{"unknown event", "UNKNOWN", nil, &item{value: "1"}, 0, "", ""},
}

func TestFromLambda_Classification(t *testing.T) {
	for _, tt := range classificationTests {
		t.Run(tt.name, func(t *testing.T) {
			batch := stream.FromLambda(events.DynamoDBEvent{
				Records: []events.DynamoDBEventRecord{lambdaRecord(tt.event, "notes", "k", tt.before, tt.after)},
			})
			checkClassification(t, batch, tt.expected, tt.value, tt.origin)
		})
	}
}

func TestFromStreams_Classification(t *testing.T) {
	for _, tt := range classificationTests {
		t.Run(tt.name, func(t *testing.T) {
			batch := stream.FromStreams([]types.Record{streamsRecord(tt.event, "notes", "k", tt.before, tt.after)})
			checkClassification(t, batch, tt.expected, tt.value, tt.origin)
		})
	}
}

func checkClassification(t *testing.T, batch stream.Batch, op stream.Op, value, origin string) {
	t.Helper()
	if len(batch.Sync) != 0 {
		t.Errorf("expected no sync records, got %d", len(batch.Sync))
	}
	if op == 0 {
		if len(batch.Records) != 0 {
			t.Errorf("expected record to be ignored, got %+v", batch.Records)
		}
		return
	}
	if len(batch.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(batch.Records))
	}
	want := stream.Record{Op: op, Store: "notes", Key: "k", Value: value, Origin: origin}
	if batch.Records[0] != want {
		t.Errorf("expected %+v, got %+v", want, batch.Records[0])
	}
}

func TestFromLambda_KeysFromImage(t *testing.T) {
	rec := lambdaRecord("INSERT", "notes", "k", nil, &item{value: "1", origin: "phone"})
	rec.Change.Keys = nil

	batch := stream.FromLambda(events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{rec}})
	if len(batch.Records) != 1 || batch.Records[0].Key != "k" {
		t.Errorf("expected key from new image, got %+v", batch.Records)
	}
}

func TestFromLambda_NoKeys(t *testing.T) {
	batch := stream.FromLambda(events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{{EventName: "INSERT"}},
	})
	if !batch.Empty() {
		t.Errorf("expected empty batch, got %+v", batch)
	}
}

func TestFromStreams_NilStreamRecord(t *testing.T) {
	batch := stream.FromStreams([]types.Record{{EventName: types.OperationTypeInsert}})
	if !batch.Empty() {
		t.Errorf("expected empty batch, got %+v", batch)
	}
}

// --- Sync Record Tests ---

func syncImage(mode, origin string, ttl int64) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"mode":   events.NewStringAttribute(mode),
		"origin": events.NewStringAttribute(origin),
		"ttl":    events.NewNumberAttribute(strconv.FormatInt(ttl, 10)),
	}
}

func syncRecord(event, pk, sk string, img map[string]events.DynamoDBAttributeValue) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventName: event,
		Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{
				"pk": events.NewStringAttribute(pk),
				"sk": events.NewStringAttribute(sk),
			},
			NewImage: img,
		},
	}
}

func TestFromLambda_SyncRecords(t *testing.T) {
	pk := keys.SyncPK("notes", "watch", 4)

	tests := []struct {
		name     string
		event    string
		sk       string
		img      map[string]events.DynamoDBAttributeValue
		expected *stream.SyncRecord
	}{
		{
			name:  "request",
			event: "INSERT",
			sk:    keys.RequestSK("watch", "r1"),
			img:   syncImage("PUSH_PULL", "phone", 99),
			expected: &stream.SyncRecord{
				Kind: keys.KindRequest, Store: "notes", Target: "watch", Requester: "phone",
				RequestID: "r1", Mode: replica.SyncModePushPull, TTL: 99,
			},
		},
		{
			name:  "ack",
			event: "INSERT",
			sk:    keys.AckSK("phone", "r1"),
			img:   syncImage("PULL_ONLY", "watch", 99),
			expected: &stream.SyncRecord{
				Kind: keys.KindAck, Store: "notes", Target: "watch", Requester: "phone",
				RequestID: "r1", Mode: replica.SyncModePullOnly, TTL: 99,
			},
		},
		{"expired request removed", "REMOVE", keys.RequestSK("watch", "r1"), syncImage("PUSH_PULL", "phone", 99), nil},
		{"unknown mode", "INSERT", keys.RequestSK("watch", "r1"), syncImage("SIDEWAYS", "phone", 99), nil},
		{"missing origin", "INSERT", keys.RequestSK("watch", "r1"), syncImage("PUSH_PULL", "", 99), nil},
		{"malformed sort key", "INSERT", "req#watch", syncImage("PUSH_PULL", "phone", 99), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := stream.FromLambda(events.DynamoDBEvent{
				Records: []events.DynamoDBEventRecord{syncRecord(tt.event, pk, tt.sk, tt.img)},
			})
			if len(batch.Records) != 0 {
				t.Errorf("sync partition produced entry records: %+v", batch.Records)
			}
			if tt.expected == nil {
				if len(batch.Sync) != 0 {
					t.Errorf("expected no sync records, got %+v", batch.Sync)
				}
				return
			}
			if len(batch.Sync) != 1 {
				t.Fatalf("expected 1 sync record, got %d", len(batch.Sync))
			}
			if batch.Sync[0] != *tt.expected {
				t.Errorf("expected %+v, got %+v", *tt.expected, batch.Sync[0])
			}
		})
	}
}

func TestOp_String(t *testing.T) {
	tests := []struct {
		op       stream.Op
		expected string
	}{
		{stream.OpInsert, "insert"},
		{stream.OpUpdate, "update"},
		{stream.OpDelete, "delete"},
		{stream.Op(0), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.expected {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.expected)
		}
	}
}
