package dynamo

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/jacentio/devicekv/internal/keys"
	"github.com/jacentio/devicekv/replica"
	"github.com/jacentio/devicekv/stream"
)

const testStreamARN = "arn:aws:dynamodb:eu-west-1:123456789012:table/devicekv-notes/stream/1"

// fakeDB is an in-memory single-table DynamoDB. Every write is appended to a
// change log in DynamoDB Streams form.
type fakeDB struct {
	mu sync.Mutex

	exists    bool
	sse       bool
	ttlOn     bool
	ttlErr    error
	streamARN string
	items     map[string]map[string]types.AttributeValue
	log       []streamtypes.Record
	seq       int

	describeErr error
	createErr   error
	putErr      func(item map[string]types.AttributeValue) error

	creates  []*dynamodb.CreateTableInput
	ttls     []*dynamodb.UpdateTimeToLiveInput
	backups  []*dynamodb.UpdateContinuousBackupsInput
	puts     []map[string]types.AttributeValue
	describe int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		streamARN: testStreamARN,
		items:     make(map[string]map[string]types.AttributeValue),
	}
}

func itemKey(key map[string]types.AttributeValue) string {
	pk, _ := key[keys.AttrPK].(*types.AttributeValueMemberS)
	sk, _ := key[keys.AttrSK].(*types.AttributeValueMemberS)
	if pk == nil || sk == nil {
		return ""
	}
	return pk.Value + "\x00" + sk.Value
}

func (f *fakeDB) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describe++
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	if !f.exists {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found")}
	}
	desc := &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
	}
	if f.streamARN != "" {
		desc.LatestStreamArn = aws.String(f.streamARN)
	}
	if f.sse {
		desc.SSEDescription = &types.SSEDescription{Status: types.SSEStatusEnabled}
	}
	return &dynamodb.DescribeTableOutput{Table: desc}, nil
}

func (f *fakeDB) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, in)
	if f.createErr != nil {
		f.exists = true
		return nil, f.createErr
	}
	f.exists = true
	f.sse = in.SSESpecification != nil
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeDB) UpdateTimeToLive(_ context.Context, in *dynamodb.UpdateTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls = append(f.ttls, in)
	if f.ttlErr != nil {
		return nil, f.ttlErr
	}
	f.ttlOn = aws.ToBool(in.TimeToLiveSpecification.Enabled)
	return &dynamodb.UpdateTimeToLiveOutput{}, nil
}

func (f *fakeDB) DescribeTimeToLive(_ context.Context, _ *dynamodb.DescribeTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	desc := &types.TimeToLiveDescription{TimeToLiveStatus: types.TimeToLiveStatusDisabled}
	if f.ttlOn {
		desc.TimeToLiveStatus = types.TimeToLiveStatusEnabled
		desc.AttributeName = aws.String(keys.AttrTTL)
	}
	return &dynamodb.DescribeTimeToLiveOutput{TimeToLiveDescription: desc}, nil
}

func (f *fakeDB) UpdateContinuousBackups(_ context.Context, in *dynamodb.UpdateContinuousBackupsInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateContinuousBackupsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backups = append(f.backups, in)
	return &dynamodb.UpdateContinuousBackupsOutput{}, nil
}

func (f *fakeDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDB) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		if err := f.putErr(in.Item); err != nil {
			return nil, err
		}
	}
	f.puts = append(f.puts, in.Item)
	k := itemKey(in.Item)
	f.record(in.Item, f.items[k], in.Item)
	f.items[k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem supports the tombstone condition and plain SET clauses.
func (f *fakeDB) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := itemKey(in.Key)
	old := f.items[k]
	if aws.ToString(in.ConditionExpression) == tombstoneCondition() {
		if old == nil {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}
		}
		if _, ok := old[keys.AttrTTL]; ok {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("tombstoned")}
		}
	}

	updated := make(map[string]types.AttributeValue, len(old)+4)
	for name, v := range old {
		updated[name] = v
	}
	for name, v := range in.Key {
		updated[name] = v
	}
	set := strings.TrimPrefix(aws.ToString(in.UpdateExpression), "SET ")
	for _, clause := range strings.Split(set, ", ") {
		parts := strings.SplitN(clause, " = ", 2)
		if len(parts) != 2 {
			continue
		}
		updated[in.ExpressionAttributeNames[parts[0]]] = in.ExpressionAttributeValues[parts[1]]
	}

	f.record(in.Key, old, updated)
	f.items[k] = updated
	return &dynamodb.UpdateItemOutput{}, nil
}

// remove deletes an item the way TTL expiry does.
func (f *fakeDB) remove(store, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := store + "\x00" + key
	old := f.items[k]
	if old == nil {
		return
	}
	delete(f.items, k)
	f.record(old, old, nil)
}

func (f *fakeDB) record(key, old, updated map[string]types.AttributeValue) {
	event := streamtypes.OperationTypeModify
	switch {
	case old == nil:
		event = streamtypes.OperationTypeInsert
	case updated == nil:
		event = streamtypes.OperationTypeRemove
	}
	f.seq++
	f.log = append(f.log, streamtypes.Record{
		EventName: event,
		Dynamodb: &streamtypes.StreamRecord{
			Keys: toStreams(map[string]types.AttributeValue{
				keys.AttrPK: key[keys.AttrPK],
				keys.AttrSK: key[keys.AttrSK],
			}),
			OldImage:       toStreams(old),
			NewImage:       toStreams(updated),
			SequenceNumber: aws.String(strconv.Itoa(f.seq)),
		},
	})
}

// drain returns and clears the change log.
func (f *fakeDB) drain() []streamtypes.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.log
	f.log = nil
	return out
}

func (f *fakeDB) item(store, key string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[store+"\x00"+key]
}

// syncItems returns the sync partition items whose sort key starts with prefix.
func (f *fakeDB) syncItems(prefix string) []map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]types.AttributeValue
	for k, it := range f.items {
		pk, sk, _ := strings.Cut(k, "\x00")
		if keys.IsSyncPK(pk) && strings.HasPrefix(sk, prefix) {
			out = append(out, it)
		}
	}
	return out
}

func toStreams(item map[string]types.AttributeValue) map[string]streamtypes.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]streamtypes.AttributeValue, len(item))
	for name, v := range item {
		switch v := v.(type) {
		case *types.AttributeValueMemberS:
			out[name] = &streamtypes.AttributeValueMemberS{Value: v.Value}
		case *types.AttributeValueMemberN:
			out[name] = &streamtypes.AttributeValueMemberN{Value: v.Value}
		}
	}
	return out
}

// pump feeds the change log to every store, like their pollers would.
func pump(t *testing.T, db *fakeDB, stores ...*Store) {
	t.Helper()
	for i := 0; i < 10; i++ {
		records := db.drain()
		if len(records) == 0 {
			return
		}
		batch := stream.FromStreams(records)
		for _, s := range stores {
			if err := s.Deliver(context.Background(), batch); err != nil {
				t.Fatalf("Deliver failed: %v", err)
			}
		}
	}
	t.Fatal("change log did not settle")
}

// fakeStreams is a stream with no shards.
type fakeStreams struct {
	mu        sync.Mutex
	describes int
}

func (f *fakeStreams) DescribeStream(_ context.Context, _ *dynamodbstreams.DescribeStreamInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describes++
	return &dynamodbstreams.DescribeStreamOutput{StreamDescription: &streamtypes.StreamDescription{}}, nil
}

func (f *fakeStreams) GetShardIterator(context.Context, *dynamodbstreams.GetShardIteratorInput, ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error) {
	return &dynamodbstreams.GetShardIteratorOutput{}, nil
}

func (f *fakeStreams) GetRecords(context.Context, *dynamodbstreams.GetRecordsInput, ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error) {
	return &dynamodbstreams.GetRecordsOutput{}, nil
}

// logBuffer collects log output from several goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) Contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(b.buf.String(), s)
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

var testOptions = replica.Options{
	CreateIfMissing: true,
	AutoSync:        true,
	StoreType:       replica.StoreTypeSingleVersion,
	SecurityLevel:   replica.SecurityLevelS1,
}

func newTestManager(t *testing.T, db *fakeDB, device string, cfg Config) *Manager {
	t.Helper()
	m, err := NewManager(db, &fakeStreams{}, cfg, replica.Identity{BundleName: "notes", DeviceID: device}, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

// openTestStore opens store "main" for device on db with a fixed clock.
func openTestStore(t *testing.T, db *fakeDB, device string, cfg Config, opts replica.Options) *Store {
	t.Helper()
	s, err := newTestManager(t, db, device, cfg).Open(context.Background(), "main", opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// sequentialIDs replaces a store's request id generator.
func sequentialIDs(s *Store, prefix string) {
	var mu sync.Mutex
	n := 0
	s.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + strconv.Itoa(n)
	}
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
