package dynamo

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/devicekv/internal/keys"
)

// IsTombstone reports whether an item has been deleted, i.e. carries a ttl.
func IsTombstone(item map[string]types.AttributeValue) bool {
	ttlAttr, exists := item[keys.AttrTTL]
	if !exists {
		return false // No TTL = live
	}
	ttlNum, ok := ttlAttr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(ttlNum.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl > 0
}

// tombstoneCondition matches live items only, so deleting a missing or
// already deleted key fails the condition.
func tombstoneCondition() string {
	return "attribute_exists(#pk) AND attribute_not_exists(#ttl)"
}

// tombstoneUpdate marks an item deleted by the given device.
func tombstoneUpdate() string {
	return "SET #ttl = :now, #origin = :origin, #updated_at = :updated_at"
}

func tombstoneNames() map[string]string {
	return map[string]string{
		"#pk":         keys.AttrPK,
		"#ttl":        keys.AttrTTL,
		"#origin":     keys.AttrOrigin,
		"#updated_at": keys.AttrUpdatedAt,
	}
}

func tombstoneValues(now time.Time, device string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberN{
			Value: strconv.FormatInt(now.Unix(), 10),
		},
		":origin":     &types.AttributeValueMemberS{Value: device},
		":updated_at": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
	}
}
