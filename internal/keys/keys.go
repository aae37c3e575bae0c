// Package keys defines the partition and sort key layout of a devicekv table.
//
// Entries live at pk=<store>, sk=<key>. Sync bookkeeping lives in sharded
// partitions pk=_sync#<store>#<shard> with sort keys req#<target>#<id> for
// requests and ack#<requester>#<id> for acknowledgements.
package keys

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// SyncPrefix marks partitions that hold sync requests and acks.
const SyncPrefix = "_sync#"

// Sort key prefixes inside a sync partition.
const (
	requestPrefix = "req#"
	ackPrefix     = "ack#"
)

// Kind is the type of a sync record.
type Kind int

const (
	KindRequest Kind = iota + 1
	KindAck
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindAck:
		return "ack"
	default:
		return "unknown"
	}
}

// EntryPK returns the partition key for entries of store.
func EntryPK(store string) string {
	return store
}

// ValidStoreName reports whether name can be used as an entry partition
// without colliding with sync partitions.
func ValidStoreName(name string) bool {
	return name != "" && !strings.HasPrefix(name, SyncPrefix)
}

// SyncPK computes the sharded partition key for a sync record addressed to
// or written by device. With numShards<=1 every record goes to shard "00".
func SyncPK(store, device string, numShards int) string {
	if numShards <= 1 {
		return fmt.Sprintf("%s%s#00", SyncPrefix, store)
	}
	h := fnv.New32a()
	h.Write([]byte(device))
	shard := h.Sum32() % uint32(numShards)
	return fmt.Sprintf("%s%s#%02x", SyncPrefix, store, shard)
}

// IsSyncPK reports whether pk is a sync partition.
func IsSyncPK(pk string) bool {
	return strings.HasPrefix(pk, SyncPrefix)
}

// ParseSyncPK returns the store name encoded in a sync partition key.
func ParseSyncPK(pk string) (store string, ok bool) {
	if !IsSyncPK(pk) {
		return "", false
	}
	rest := pk[len(SyncPrefix):]
	i := strings.LastIndexByte(rest, '#')
	if i <= 0 {
		return "", false
	}
	return rest[:i], true
}

// RequestSK returns the sort key of a sync request to target.
func RequestSK(target, requestID string) string {
	return requestPrefix + target + "#" + requestID
}

// AckSK returns the sort key of an ack for a request made by requester.
func AckSK(requester, requestID string) string {
	return ackPrefix + requester + "#" + requestID
}

// ParseSyncSK splits a sync sort key into its kind, device and request ID.
// Request IDs never contain '#', device IDs may.
func ParseSyncSK(sk string) (kind Kind, device, requestID string, ok bool) {
	var rest string
	switch {
	case strings.HasPrefix(sk, requestPrefix):
		kind, rest = KindRequest, sk[len(requestPrefix):]
	case strings.HasPrefix(sk, ackPrefix):
		kind, rest = KindAck, sk[len(ackPrefix):]
	default:
		return 0, "", "", false
	}
	i := strings.LastIndexByte(rest, '#')
	if i <= 0 || i == len(rest)-1 {
		return 0, "", "", false
	}
	return kind, rest[:i], rest[i+1:], true
}

// Attribute names shared by every item in a devicekv table.
const (
	AttrPK            = "pk"
	AttrSK            = "sk"
	AttrValue         = "value"
	AttrOrigin        = "origin"
	AttrUpdatedAt     = "updated_at"
	AttrSecurityLevel = "security_level"
	AttrMode          = "mode"
	AttrTTL           = "ttl"
)
