package service

import "github.com/meshregistry/registry/model"

// mergeKey is the (peer_id, issued_by) CRDT grouping key.
type mergeKey struct {
	peerId   string
	issuedBy string
}

// MergeTwo is merge_two: of two records colocated at the same (peer_id,
// issued_by) pair, keep the one with the greater timestamp_created. A nil
// argument is treated as absent.
func MergeTwo(a, b *model.Record) *model.Record {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.TimestampCreated > a.TimestampCreated {
		return b
	}
	return a
}

// MergeRecords is merge / merge (batch): groups records by (peer_id,
// issued_by) and keeps the entry with the greatest timestamp_created within
// each group. This is a pure function — it takes no Registry state, and
// callers (republish_records) are responsible for persisting whatever it
// returns.
func MergeRecords(records []*model.Record) []*model.Record {
	best := make(map[mergeKey]*model.Record, len(records))
	order := make([]mergeKey, 0, len(records))

	for _, rec := range records {
		if rec == nil {
			continue
		}
		peerId, issuedBy := rec.MergeKey()
		k := mergeKey{peerId: peerId, issuedBy: issuedBy}
		if cur, exists := best[k]; exists {
			best[k] = MergeTwo(cur, rec)
		} else {
			best[k] = rec
			order = append(order, k)
		}
	}

	out := make([]*model.Record, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}
