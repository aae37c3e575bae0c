package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/devicekv/internal/keys"
	"github.com/jacentio/devicekv/replica"
	"github.com/jacentio/devicekv/stream"
)

// entryItem is the stored form of a key/value entry.
type entryItem struct {
	PK            string `dynamodbav:"pk"`
	SK            string `dynamodbav:"sk"`
	Value         string `dynamodbav:"value"`
	Origin        string `dynamodbav:"origin"`
	UpdatedAt     string `dynamodbav:"updated_at"`
	SecurityLevel string `dynamodbav:"security_level"`
	TTL           int64  `dynamodbav:"ttl,omitempty"`
}

// Store is one open store of a bundle table. It implements replica.Store and
// stream.Sink.
type Store struct {
	db        API
	streams   stream.API
	config    Config
	logger    *slog.Logger
	table     string
	name      string
	device    string
	streamARN string
	opts      replica.Options

	now   func() time.Time
	newID func() string

	listeners listeners

	// ctx is cancelled by Close and bounds background sync writes.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// lifeMu orders EnableContinuousSync and Close.
	lifeMu sync.Mutex
	poller *stream.Poller

	mu       sync.Mutex
	closed   bool
	drained  bool // request writers finished after close
	requests map[string]*pendingRequest
}

func newStore(m *Manager, table, name, streamARN string, opts replica.Options) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		db:        m.db,
		streams:   m.streams,
		config:    m.config,
		logger:    m.logger.With("store", name),
		table:     table,
		name:      name,
		device:    m.identity.DeviceID,
		streamARN: streamARN,
		opts:      opts,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		ctx:       ctx,
		cancel:    cancel,
		requests:  make(map[string]*pendingRequest),
	}
}

// Name returns the store name.
func (s *Store) Name() string { return s.name }

// Table returns the table the store lives in.
func (s *Store) Table() string { return s.table }

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return replica.ErrClosed
	}
	return nil
}

func (s *Store) entryKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keys.AttrPK: &types.AttributeValueMemberS{Value: keys.EntryPK(s.name)},
		keys.AttrSK: &types.AttributeValueMemberS{Value: key},
	}
}

// Put writes key, replacing any previous value or tombstone.
func (s *Store) Put(ctx context.Context, key, value string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}

	item, err := attributevalue.MarshalMap(entryItem{
		PK:            keys.EntryPK(s.name),
		SK:            key,
		Value:         value,
		Origin:        s.device,
		UpdatedAt:     s.now().UTC().Format(time.RFC3339),
		SecurityLevel: s.opts.SecurityLevel.String(),
	})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Delete tombstones key. Deleting a missing or already deleted key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}

	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.entryKey(key),
		UpdateExpression:          aws.String(tombstoneUpdate()),
		ConditionExpression:       aws.String(tombstoneCondition()),
		ExpressionAttributeNames:  tombstoneNames(),
		ExpressionAttributeValues: tombstoneValues(s.now(), s.device),
	})

	// Ignore condition failure - missing or already tombstoned
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Get returns the value of key, or ErrNotFound if it is missing or deleted.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.entryKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get %q: %w", key, err)
	}
	if out.Item == nil || IsTombstone(out.Item) {
		return "", ErrNotFound
	}

	var e entryItem
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return "", fmt.Errorf("unmarshal entry: %w", err)
	}
	return e.Value, nil
}

// EnableContinuousSync starts or stops reading the table's stream.
func (s *Store) EnableContinuousSync(ctx context.Context, enabled bool) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	if !enabled {
		if s.poller != nil {
			s.poller.Stop()
		}
		s.logger.Info("continuous sync disabled")
		return nil
	}

	if s.streamARN == "" {
		return replica.ErrStreamUnavailable
	}
	if s.poller == nil {
		s.poller = stream.NewPoller(s.streams, s.streamARN, s, s.config.PollInterval, s.logger)
	}
	if err := s.poller.Start(ctx); err != nil {
		return fmt.Errorf("start stream poller: %w", err)
	}
	return nil
}

// OnDataChange registers the change handler, replacing any previous one.
func (s *Store) OnDataChange(scope replica.SubscribeScope, handler func(replica.ChangeNotification)) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.listeners.setChange(scope, handler)
	return nil
}

// OffDataChange removes the change handler.
func (s *Store) OffDataChange() error {
	s.listeners.setChange(replica.SubscribeAll, nil)
	return nil
}

// OnSyncComplete registers the sync complete handler, replacing any previous one.
func (s *Store) OnSyncComplete(handler func(replica.SyncResult)) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.listeners.setComplete(handler)
	return nil
}

// OffSyncComplete removes the sync complete handler.
func (s *Store) OffSyncComplete() error {
	s.listeners.setComplete(nil)
	return nil
}

// Close stops the stream poller, abandons running sync rounds and removes
// both handlers, then waits for in-flight sync requests to settle. If ctx
// ends first, ctx.Err() is returned and a later Close resumes the wait.
// Closing a closed store is a no-op.
func (s *Store) Close(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.drained {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	abandoned := s.abandonRoundsLocked()
	s.mu.Unlock()

	if s.poller != nil {
		s.poller.Stop()
	}
	s.cancel()
	s.listeners.clear()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("store close interrupted", "error", ctx.Err())
		return ctx.Err()
	}

	s.mu.Lock()
	s.drained = true
	s.mu.Unlock()
	s.logger.Info("store closed", "abandonedRounds", abandoned)
	return nil
}

// Deliver applies one decoded stream batch: entry changes go to the change
// handler, sync requests addressed to this device are acked and acks for
// this device's requests advance their rounds.
func (s *Store) Deliver(ctx context.Context, batch stream.Batch) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if notifications := groupChanges(s.name, batch.Records); len(notifications) > 0 {
		delivered := s.listeners.dispatchChanges(s.device, notifications)
		s.logger.Debug("changes received",
			"batches", len(notifications),
			"delivered", delivered,
		)
	}

	var errs []error
	for _, rec := range batch.Sync {
		if rec.Store != s.name {
			continue
		}
		switch {
		case rec.Kind == keys.KindRequest && rec.Target == s.device:
			if err := s.answer(ctx, rec); err != nil {
				errs = append(errs, err)
			}
		case rec.Kind == keys.KindAck && rec.Requester == s.device:
			s.complete(rec.RequestID, replica.SyncSuccess)
		}
	}
	return errors.Join(errs...)
}

// groupChanges splits the records of store into one notification per origin
// device, in order of first appearance.
func groupChanges(store string, records []stream.Record) []replica.ChangeNotification {
	var out []replica.ChangeNotification
	index := make(map[string]int)
	for _, r := range records {
		if r.Store != store {
			continue
		}
		i, ok := index[r.Origin]
		if !ok {
			i = len(out)
			index[r.Origin] = i
			out = append(out, replica.ChangeNotification{DeviceID: r.Origin})
		}

		e := replica.Entry{Key: r.Key, Value: r.Value}
		switch r.Op {
		case stream.OpInsert:
			out[i].Inserted = append(out[i].Inserted, e)
		case stream.OpUpdate:
			out[i].Updated = append(out[i].Updated, e)
		case stream.OpDelete:
			out[i].Deleted = append(out[i].Deleted, e)
		}
	}
	return out
}

var (
	_ replica.Manager = (*Manager)(nil)
	_ replica.Store   = (*Store)(nil)
	_ stream.Sink     = (*Store)(nil)
)
