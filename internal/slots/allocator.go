// Package slots decides which slot id a new recording of a category goes to.
//
// Occupancy is recomputed from a store snapshot on every call; nothing here
// holds state between calls.
package slots

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"pagemsg/internal/domain"
)

// Policy defines the id universe of each category.
type Policy struct {
	// NumButtons bounds the numbered range 1..NumButtons used by general categories.
	NumButtons int
	// FixedPools maps legacy categories to a hard-wired id pool.
	FixedPools map[string][]string
}

// NewPolicy builds a policy where every legacy type shares the pool "1".."poolSize".
func NewPolicy(numButtons int, legacyTypes []string, poolSize int) Policy {
	pools := make(map[string][]string, len(legacyTypes))
	for _, messageType := range legacyTypes {
		pools[messageType] = numberedRange(poolSize)
	}
	return Policy{NumButtons: numButtons, FixedPools: pools}
}

// Universe returns the legal ids for messageType in ascending order.
func (p Policy) Universe(messageType string) []string {
	if pool, ok := p.FixedPools[messageType]; ok {
		out := append([]string(nil), pool...)
		SortIDs(out)
		return out
	}
	return numberedRange(p.NumButtons)
}

// Allocate returns the smallest free id of messageType, or the id holding the
// oldest recording when the category is saturated.
func Allocate(records map[string]domain.Record, messageType string, policy Policy, logger *zap.SugaredLogger) string {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	universe := policy.Universe(messageType)
	if len(universe) == 0 {
		return "1"
	}

	occupied := Occupied(records, messageType)
	for _, id := range universe {
		if _, taken := occupied[id]; !taken {
			return id
		}
	}

	var (
		oldestID   string
		oldestTime time.Time
		found      bool
	)
	for _, id := range universe {
		record := occupied[id]
		ts, err := domain.ParseTimestamp(record.Timestamp)
		if err != nil {
			logger.Warnw("ignoring unparsable timestamp during eviction", "slot", id, "message_type", messageType, "timestamp", record.Timestamp)
			continue
		}
		if !found || ts.Before(oldestTime) {
			oldestID, oldestTime, found = id, ts, true
		}
	}
	if !found {
		return universe[0]
	}

	logger.Infow("category saturated, evicting oldest recording", "slot", oldestID, "message_type", messageType)
	return oldestID
}

// Occupied returns the records whose message type is messageType.
func Occupied(records map[string]domain.Record, messageType string) map[string]domain.Record {
	out := map[string]domain.Record{}
	for id, record := range records {
		if record.MessageType == messageType {
			out[id] = record
		}
	}
	return out
}

// EmptyMask returns a bitmask of ids 1..numButtons not holding a messageType
// recording. Bit n-1 stands for id n.
func EmptyMask(records map[string]domain.Record, messageType string, numButtons int, logger *zap.SugaredLogger) string {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	occupied := Occupied(records, messageType)
	for id := range occupied {
		if _, err := strconv.Atoi(id); err != nil {
			logger.Warnw("ignoring non-numeric slot id", "slot", id, "message_type", messageType)
		}
	}

	var mask uint64
	for i := 1; i <= numButtons && i <= 64; i++ {
		if _, taken := occupied[strconv.Itoa(i)]; !taken {
			mask |= 1 << uint(i-1)
		}
	}
	return fmt.Sprintf("0x%04X", mask)
}

func numberedRange(n int) []string {
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

// SortIDs orders numeric ids numerically, then everything else lexically.
func SortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}
