// Package stream decodes DynamoDB stream records of a devicekv table into
// entry changes and sync bookkeeping, and delivers them to a Sink.
//
// Records arrive either through an AWS Lambda trigger (Handler) or by polling
// the DynamoDB Streams API from the device itself (Poller).
package stream

import (
	"context"

	"github.com/jacentio/devicekv/internal/keys"
	"github.com/jacentio/devicekv/replica"
)

// Stream event names.
const (
	eventInsert = "INSERT"
	eventModify = "MODIFY"
	eventRemove = "REMOVE"
)

// Op is the kind of change a Record describes.
type Op int

const (
	OpInsert Op = iota + 1
	OpUpdate
	OpDelete
)

// String returns the op name.
func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Record is one entry change.
type Record struct {
	Op     Op
	Store  string
	Key    string
	Value  string
	Origin string
}

// SyncRecord is a sync request or ack. Target is the device asked to sync
// and Requester the device that asked, for both kinds.
type SyncRecord struct {
	Kind      keys.Kind
	Store     string
	Target    string
	Requester string
	RequestID string
	Mode      replica.SyncMode
	TTL       int64
}

// Batch is the decoded content of one delivery.
type Batch struct {
	Records []Record
	Sync    []SyncRecord
}

// Empty reports whether the batch carries nothing.
func (b Batch) Empty() bool {
	return len(b.Records) == 0 && len(b.Sync) == 0
}

// Sink consumes decoded batches.
type Sink interface {
	Deliver(ctx context.Context, batch Batch) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, batch Batch) error

func (f SinkFunc) Deliver(ctx context.Context, batch Batch) error {
	return f(ctx, batch)
}

// image is the subset of an item image that devicekv reads.
type image struct {
	pk     string
	sk     string
	value  string
	origin string
	mode   string
	ttl    int64
}

// add classifies one stream record and appends the result, if any.
//
// Deletes are tombstones: setting ttl reports a delete, clearing it reports
// a revival insert, and the later TTL removal of a tombstone is dropped.
func (b *Batch) add(eventName string, key, before, after image) {
	pk, sk := key.pk, key.sk
	if pk == "" {
		pk, sk = firstNonEmpty(after.pk, before.pk), firstNonEmpty(after.sk, before.sk)
	}
	if pk == "" {
		return
	}

	if keys.IsSyncPK(pk) {
		if eventName != eventInsert {
			return
		}
		if rec, ok := decodeSync(pk, sk, after); ok {
			b.Sync = append(b.Sync, rec)
		}
		return
	}

	var op Op
	img := after
	switch eventName {
	case eventInsert:
		op = OpInsert
	case eventModify:
		switch {
		case before.ttl == 0 && after.ttl != 0:
			op = OpDelete
		case before.ttl != 0 && after.ttl == 0:
			op = OpInsert
		case before.ttl == 0 && after.ttl == 0:
			op = OpUpdate
		default:
			return
		}
	case eventRemove:
		if before.ttl != 0 {
			return
		}
		op, img = OpDelete, before
	default:
		return
	}

	b.Records = append(b.Records, Record{
		Op:     op,
		Store:  pk,
		Key:    sk,
		Value:  img.value,
		Origin: img.origin,
	})
}

func decodeSync(pk, sk string, img image) (SyncRecord, bool) {
	store, ok := keys.ParseSyncPK(pk)
	if !ok {
		return SyncRecord{}, false
	}
	kind, device, requestID, ok := keys.ParseSyncSK(sk)
	if !ok {
		return SyncRecord{}, false
	}
	mode, ok := replica.ParseSyncMode(img.mode)
	if !ok || img.origin == "" {
		return SyncRecord{}, false
	}

	rec := SyncRecord{
		Kind:      kind,
		Store:     store,
		RequestID: requestID,
		Mode:      mode,
		TTL:       img.ttl,
	}
	if kind == keys.KindRequest {
		rec.Target, rec.Requester = device, img.origin
	} else {
		rec.Target, rec.Requester = img.origin, device
	}
	return rec, true
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
