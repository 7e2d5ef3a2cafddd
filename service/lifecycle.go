package service

import (
	"github.com/meshregistry/registry/model"
	"github.com/meshregistry/registry/provenance"
	"github.com/meshregistry/registry/regerrors"
)

// ClearHostRecord is clear_host_record: deletes the single row
// (key_id, callerPeerId, host).
func (r *Registry) ClearHostRecord(keyId, callerPeerId string, currentTimestamp uint64, tetraplets provenance.CallTetraplets) (res Result[bool]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("clear_host_record", err, start) }()

	if err = provenance.CheckTimestampTetraplet(tetraplets, 1, r.hostPeerId); err != nil {
		return fail[bool](err)
	}

	removed, derr := r.store.DeleteRecord(keyId, callerPeerId, r.hostPeerId)
	if derr != nil {
		err = derr
		return fail[bool](err)
	}
	if !removed {
		err = regerrors.New(regerrors.HostValueNotFound, "no host record at (%s, %s, %s)", keyId, callerPeerId, r.hostPeerId)
		return fail[bool](err)
	}

	return ok(true)
}

// ClearExpiredResult is the payload of clear_expired: the count of keys,
// records, and tombstones removed.
type ClearExpiredResult struct {
	Keys       int
	Records    int
	Tombstones int
}

// ClearExpired is clear_expired: deletes expired tombstones, then expired
// non-host records, then expired keys left with no surviving records.
func (r *Registry) ClearExpired(currentTimestamp uint64, tetraplets provenance.CallTetraplets) (res Result[ClearExpiredResult]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("clear_expired", err, start) }()

	if err = provenance.CheckTimestampTetraplet(tetraplets, 0, r.hostPeerId); err != nil {
		return fail[ClearExpiredResult](err)
	}

	expiredTimeout, _, terr := r.thresholds()
	if terr != nil {
		err = terr
		return fail[ClearExpiredResult](err)
	}
	threshold := thresholdSub(currentTimestamp, expiredTimeout)

	tombstones, terr2 := r.store.ClearExpiredTombstones(threshold)
	if terr2 != nil {
		err = terr2
		return fail[ClearExpiredResult](err)
	}

	records, rerr := r.store.ClearExpiredRecords(threshold, r.hostPeerId)
	if rerr != nil {
		err = rerr
		return fail[ClearExpiredResult](err)
	}

	keys, kerr := r.store.ClearExpiredKeys(threshold)
	if kerr != nil {
		err = kerr
		return fail[ClearExpiredResult](err)
	}

	if r.metrics != nil {
		r.metrics.KeysExpiredTotal.Add(float64(keys))
		r.metrics.RecordsExpiredTotal.Add(float64(records))
		r.metrics.TombstonesExpiredTotal.Add(float64(tombstones))
	}

	return ok(ClearExpiredResult{Keys: keys, Records: records, Tombstones: tombstones})
}

// EvictStaleItem pairs a stale key with its currently surviving records and
// tombstones, for the replication scheduler to act on.
type EvictStaleItem struct {
	Key        *model.Key
	Records    []*model.Record
	Tombstones []*model.Tombstone
}

// EvictStale is evict_stale: read-only — surfaces stale keys and their
// current contents without deleting anything.
func (r *Registry) EvictStale(currentTimestamp uint64, tetraplets provenance.CallTetraplets) (res Result[[]EvictStaleItem]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("evict_stale", err, start) }()

	if err = provenance.CheckTimestampTetraplet(tetraplets, 0, r.hostPeerId); err != nil {
		return fail[[]EvictStaleItem](err)
	}

	_, staleTimeout, terr := r.thresholds()
	if terr != nil {
		err = terr
		return fail[[]EvictStaleItem](err)
	}
	expiredTimeout, _, terr2 := r.thresholds()
	if terr2 != nil {
		err = terr2
		return fail[[]EvictStaleItem](err)
	}
	staleThreshold := thresholdSub(currentTimestamp, staleTimeout)

	staleKeys, serr := r.store.StaleKeys(staleThreshold)
	if serr != nil {
		err = serr
		return fail[[]EvictStaleItem](err)
	}

	items := make([]EvictStaleItem, 0, len(staleKeys))
	for _, key := range staleKeys {
		records, rerr := r.store.GetRecords(key.ID, currentTimestamp, expiredTimeout)
		if rerr != nil {
			err = rerr
			return fail[[]EvictStaleItem](err)
		}
		tombstones, terr3 := r.store.GetTombstones(key.ID, currentTimestamp, expiredTimeout)
		if terr3 != nil {
			err = terr3
			return fail[[]EvictStaleItem](err)
		}
		items = append(items, EvictStaleItem{Key: key, Records: records, Tombstones: tombstones})
	}

	if r.metrics != nil {
		r.metrics.StaleKeysSurfacedTotal.Add(float64(len(items)))
	}

	return ok(items)
}

// GetStaleLocalRecords is get_stale_local_records (SPEC_FULL.md §11):
// host-held records older than stale_timeout, scanned across every key —
// distinct from evict_stale, which operates on whole stale keys rather than
// individual host-held records.
func (r *Registry) GetStaleLocalRecords(currentTimestamp uint64, tetraplets provenance.CallTetraplets) (res Result[[]*model.Record]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("get_stale_local_records", err, start) }()

	if err = provenance.CheckTimestampTetraplet(tetraplets, 0, r.hostPeerId); err != nil {
		return fail[[]*model.Record](err)
	}

	_, staleTimeout, terr := r.thresholds()
	if terr != nil {
		err = terr
		return fail[[]*model.Record](err)
	}
	threshold := thresholdSub(currentTimestamp, staleTimeout)

	keyIds, kerr := r.store.AllKeyIds()
	if kerr != nil {
		err = kerr
		return fail[[]*model.Record](err)
	}

	var stale []*model.Record
	for _, keyId := range keyIds {
		recs, rerr := r.store.GetLocalStaleRecords(keyId, threshold, r.hostPeerId)
		if rerr != nil {
			err = rerr
			return fail[[]*model.Record](err)
		}
		stale = append(stale, recs...)
	}

	return ok(stale)
}

// SetExpiredTimeout is set_expired_timeout.
func (r *Registry) SetExpiredTimeout(seconds uint64) (res Result[bool]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("set_expired_timeout", err, start) }()

	if err = r.cfg.SetExpiredTimeout(seconds); err != nil {
		return fail[bool](err)
	}
	return ok(true)
}

// SetStaleTimeout is set_stale_timeout.
func (r *Registry) SetStaleTimeout(seconds uint64) (res Result[bool]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("set_stale_timeout", err, start) }()

	if err = r.cfg.SetStaleTimeout(seconds); err != nil {
		return fail[bool](err)
	}
	return ok(true)
}
