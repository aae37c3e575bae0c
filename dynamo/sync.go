package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/devicekv/internal/keys"
	"github.com/jacentio/devicekv/replica"
	"github.com/jacentio/devicekv/stream"
)

// syncItem is the stored form of a sync request or ack. Origin is the device
// that wrote it.
type syncItem struct {
	PK     string `dynamodbav:"pk"`
	SK     string `dynamodbav:"sk"`
	Mode   string `dynamodbav:"mode"`
	Origin string `dynamodbav:"origin"`
	TTL    int64  `dynamodbav:"ttl"`
}

// round is one TriggerSync call.
type round struct {
	mode      replica.SyncMode
	result    replica.SyncResult
	remaining int
	requests  []string
	timer     *time.Timer
	done      bool
}

// pendingRequest is a request of a round that has not been resolved yet.
type pendingRequest struct {
	round  *round
	device string
}

// TriggerSync starts a sync round with deviceIDs. It returns once the round
// is registered; requests are written in the background and the outcome is
// delivered to the sync complete handler.
func (s *Store) TriggerSync(deviceIDs []string, mode replica.SyncMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", replica.ErrInvalidSyncMode, mode)
	}
	devices := uniqueDevices(deviceIDs)
	if len(devices) == 0 {
		return replica.ErrNoDevices
	}

	r := &round{
		mode:      mode,
		result:    make(replica.SyncResult, len(devices)),
		remaining: len(devices),
	}
	ids := make(map[string]string, len(devices))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return replica.ErrClosed
	}
	for _, device := range devices {
		id := s.newID()
		ids[device] = id
		r.requests = append(r.requests, id)
		s.requests[id] = &pendingRequest{round: r, device: device}
	}
	r.timer = time.AfterFunc(s.config.SyncTimeout, func() { s.expire(r) })
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("sync round started", "devices", devices, "mode", mode.String())

	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.config.SyncTimeout)
		defer cancel()
		for _, device := range devices {
			id := ids[device]
			if err := s.writeSync(ctx, keys.SyncPK(s.name, device, s.config.NumShards), keys.RequestSK(device, id), mode); err != nil {
				s.logger.Warn("failed to write sync request", "target", device, "requestID", id, "error", err)
				s.complete(id, replica.SyncFailed)
			}
		}
	}()
	return nil
}

// answer acks a live request addressed to this device.
func (s *Store) answer(ctx context.Context, rec stream.SyncRecord) error {
	if rec.TTL != 0 && rec.TTL <= s.now().Unix() {
		s.logger.Debug("ignoring expired sync request", "requester", rec.Requester, "requestID", rec.RequestID)
		return nil
	}
	if !s.opts.AutoSync {
		s.logger.Info("auto sync off, leaving sync request unanswered",
			"requester", rec.Requester,
			"requestID", rec.RequestID,
		)
		return nil
	}

	pk := keys.SyncPK(s.name, rec.Requester, s.config.NumShards)
	if err := s.writeSync(ctx, pk, keys.AckSK(rec.Requester, rec.RequestID), rec.Mode); err != nil {
		return fmt.Errorf("ack %s: %w", rec.RequestID, err)
	}
	s.logger.Debug("sync request acked", "requester", rec.Requester, "requestID", rec.RequestID, "mode", rec.Mode.String())
	return nil
}

func (s *Store) writeSync(ctx context.Context, pk, sk string, mode replica.SyncMode) error {
	item, err := attributevalue.MarshalMap(syncItem{
		PK:     pk,
		SK:     sk,
		Mode:   mode.String(),
		Origin: s.device,
		TTL:    s.now().Add(s.config.RequestTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal sync record: %w", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return err
}

// complete resolves one request and finishes its round when it was the last.
func (s *Store) complete(requestID string, status replica.SyncStatus) {
	s.mu.Lock()
	req, ok := s.requests[requestID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.requests, requestID)

	r := req.round
	r.result[req.device] = status
	r.remaining--
	if r.remaining > 0 || r.done {
		s.mu.Unlock()
		return
	}
	r.done = true
	r.timer.Stop()
	s.mu.Unlock()

	s.finish(r)
}

// expire marks every unresolved request of r as timed out.
func (s *Store) expire(r *round) {
	s.mu.Lock()
	if r.done || s.closed {
		s.mu.Unlock()
		return
	}
	for _, id := range r.requests {
		if req, ok := s.requests[id]; ok {
			delete(s.requests, id)
			r.result[req.device] = replica.SyncTimeout
		}
	}
	r.remaining = 0
	r.done = true
	s.mu.Unlock()

	s.finish(r)
}

func (s *Store) finish(r *round) {
	results := make(map[string]string, len(r.result))
	for device, status := range r.result {
		results[device] = status.String()
	}
	s.logger.Info("sync round finished", "mode", r.mode.String(), "results", results)

	if !s.listeners.dispatchComplete(r.result) {
		s.logger.Debug("no sync complete handler")
	}
}

// abandonRoundsLocked drops every running round without reporting it.
func (s *Store) abandonRoundsLocked() int {
	rounds := make(map[*round]bool)
	for id, req := range s.requests {
		delete(s.requests, id)
		if !req.round.done {
			req.round.done = true
			req.round.timer.Stop()
			rounds[req.round] = true
		}
	}
	return len(rounds)
}

func uniqueDevices(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
