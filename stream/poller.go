package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/jacentio/devicekv/internal/keys"
)

// API is the subset of *dynamodbstreams.Client used by Poller.
type API interface {
	DescribeStream(ctx context.Context, params *dynamodbstreams.DescribeStreamInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, params *dynamodbstreams.GetShardIteratorInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, params *dynamodbstreams.GetRecordsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error)
}

// DefaultPollInterval is used when NewPoller is given a non-positive interval.
const DefaultPollInterval = time.Second

// Poller reads a table's stream through the DynamoDB Streams API and delivers
// each round of records to a Sink. Shards open at Start are read from LATEST;
// shards that appear later are read from TRIM_HORIZON. A shard that loses its
// iterator resumes after its last sequence number, or from TRIM_HORIZON when
// none was read, skipping records created before the shard was first opened.
type Poller struct {
	api       API
	streamARN string
	sink      Sink
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// Owned by the polling goroutine, or by Start before it is launched.
	iterators map[string]string
	lastSeq   map[string]string
	closed    map[string]bool
	since     map[string]time.Time
	rescan    bool
}

// NewPoller creates a stopped Poller.
func NewPoller(api API, streamARN string, sink Sink, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		api:       api,
		streamARN: streamARN,
		sink:      sink,
		interval:  interval,
		logger:    logger.With("stream", streamARN),
		now:       time.Now,
	}
}

// Start discovers the stream's open shards and begins polling them in the
// background. Discovery errors are returned. Starting a running Poller is a
// no-op.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return nil
	}

	p.iterators = make(map[string]string)
	p.lastSeq = make(map[string]string)
	p.closed = make(map[string]bool)
	p.since = make(map[string]time.Time)
	if err := p.discover(ctx, true); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(runCtx, p.done)

	p.logger.Info("stream poller started", "shards", len(p.iterators), "interval", p.interval)
	return nil
}

// Stop cancels polling and waits for the in-flight round to finish. Stopping
// a stopped Poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel, p.done = nil, nil
	p.logger.Info("stream poller stopped")
}

// Running reports whether the Poller is started.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll runs one round: rediscover shards when needed, read every shard once,
// and deliver what was read.
func (p *Poller) poll(ctx context.Context) {
	if p.rescan {
		if err := p.discover(ctx, false); err != nil {
			p.logger.Warn("failed to discover shards", "error", err)
		}
	}

	var batch Batch
	for shardID, iterator := range p.iterators {
		out, err := p.api.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{
			ShardIterator: aws.String(iterator),
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("failed to read shard", "shard", shardID, "error", err)
			// A lost iterator is reacquired from the last sequence number.
			var expired *types.ExpiredIteratorException
			var trimmed *types.TrimmedDataAccessException
			if errors.As(err, &expired) || errors.As(err, &trimmed) {
				delete(p.iterators, shardID)
				p.rescan = true
			}
			continue
		}

		for _, r := range out.Records {
			if r.Dynamodb != nil && r.Dynamodb.SequenceNumber != nil {
				p.lastSeq[shardID] = *r.Dynamodb.SequenceNumber
			}
			if p.predates(shardID, r) {
				continue
			}
			addStreamsRecord(&batch, r)
		}

		if out.NextShardIterator == nil {
			// Shard closed; its children show up on the next discovery.
			delete(p.iterators, shardID)
			delete(p.lastSeq, shardID)
			delete(p.since, shardID)
			p.closed[shardID] = true
			p.rescan = true
			continue
		}
		p.iterators[shardID] = *out.NextShardIterator
	}

	if batch.Empty() {
		return
	}
	if err := p.sink.Deliver(ctx, batch); err != nil {
		p.logger.Error("failed to deliver stream batch", "error", err)
	}
}

// discover lists the stream's shards and acquires iterators for new ones.
func (p *Poller) discover(ctx context.Context, initial bool) error {
	var start *string
	for {
		out, err := p.api.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             aws.String(p.streamARN),
			ExclusiveStartShardId: start,
		})
		if err != nil {
			return fmt.Errorf("describe stream: %w", err)
		}
		desc := out.StreamDescription
		if desc == nil {
			return nil
		}

		for _, shard := range desc.Shards {
			id := aws.ToString(shard.ShardId)
			if id == "" || p.closed[id] {
				continue
			}
			if _, ok := p.iterators[id]; ok {
				continue
			}
			open := shard.SequenceNumberRange == nil || shard.SequenceNumberRange.EndingSequenceNumber == nil
			if initial && !open {
				continue
			}
			if err := p.openShard(ctx, id, initial); err != nil {
				return err
			}
		}

		if desc.LastEvaluatedShardId == nil {
			break
		}
		start = desc.LastEvaluatedShardId
	}
	p.rescan = false
	return nil
}

func (p *Poller) openShard(ctx context.Context, shardID string, initial bool) error {
	in := &dynamodbstreams.GetShardIteratorInput{
		StreamArn: aws.String(p.streamARN),
		ShardId:   aws.String(shardID),
	}
	switch seq, ok := p.lastSeq[shardID]; {
	case ok:
		in.ShardIteratorType = types.ShardIteratorTypeAfterSequenceNumber
		in.SequenceNumber = aws.String(seq)
	case initial:
		in.ShardIteratorType = types.ShardIteratorTypeLatest
		// Creation times are only minute-accurate.
		p.since[shardID] = p.now().Truncate(time.Minute)
	default:
		in.ShardIteratorType = types.ShardIteratorTypeTrimHorizon
	}

	out, err := p.api.GetShardIterator(ctx, in)
	if err != nil {
		return fmt.Errorf("get shard iterator %s: %w", shardID, err)
	}
	if out.ShardIterator == nil {
		p.closed[shardID] = true
		return nil
	}
	p.iterators[shardID] = *out.ShardIterator
	p.logger.Debug("opened shard", "shard", shardID, "iteratorType", string(in.ShardIteratorType))
	return nil
}

// predates reports whether r was created before its shard was first opened
// at LATEST.
func (p *Poller) predates(shardID string, r types.Record) bool {
	since, ok := p.since[shardID]
	if !ok || r.Dynamodb == nil || r.Dynamodb.ApproximateCreationDateTime == nil {
		return false
	}
	return r.Dynamodb.ApproximateCreationDateTime.Before(since)
}

// FromStreams decodes records read from the DynamoDB Streams API.
func FromStreams(records []types.Record) Batch {
	var b Batch
	for _, r := range records {
		addStreamsRecord(&b, r)
	}
	return b
}

func addStreamsRecord(b *Batch, r types.Record) {
	if r.Dynamodb == nil {
		return
	}
	b.add(string(r.EventName),
		streamsImage(r.Dynamodb.Keys),
		streamsImage(r.Dynamodb.OldImage),
		streamsImage(r.Dynamodb.NewImage),
	)
}

func streamsImage(img map[string]types.AttributeValue) image {
	return image{
		pk:     streamsString(img, keys.AttrPK),
		sk:     streamsString(img, keys.AttrSK),
		value:  streamsString(img, keys.AttrValue),
		origin: streamsString(img, keys.AttrOrigin),
		mode:   streamsString(img, keys.AttrMode),
		ttl:    streamsNumber(img, keys.AttrTTL),
	}
}

func streamsString(img map[string]types.AttributeValue, key string) string {
	if v, ok := img[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func streamsNumber(img map[string]types.AttributeValue, key string) int64 {
	if v, ok := img[key].(*types.AttributeValueMemberN); ok {
		n, _ := strconv.ParseInt(v.Value, 10, 64)
		return n
	}
	return 0
}
