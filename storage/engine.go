package storage

import (
	"database/sql"

	gorp "github.com/letsencrypt/borp"

	"github.com/meshregistry/registry/model"
	"github.com/meshregistry/registry/regerrors"
)

// thresholdSub computes now-timeout without underflowing when timeout > now,
// since all timestamps here are unsigned.
func thresholdSub(now, timeout uint64) uint64 {
	if timeout > now {
		return 0
	}
	return now - timeout
}

// executor is the subset of *gorp.DbMap / *gorp.Transaction this file uses,
// so every helper works identically inside or outside a transaction —
// mirrors the teacher's sa/interfaces.go dbExecer split.
type executor interface {
	gorp.SqlExecutor
}

func (e *Engine) begin() (*gorp.Transaction, error) {
	tx, err := e.dbMap.Begin()
	if err != nil {
		return nil, regerrors.New(regerrors.SqliteError, "beginning transaction: %v", err)
	}
	return tx, nil
}

// rollback logs a rollback failure without masking the original error, the
// same pattern as the teacher's sa.rollback helper.
func (e *Engine) rollback(tx *gorp.Transaction, cause error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		e.log.Error(rbErr, "transaction rollback failed", "cause", cause)
	}
	return cause
}

// WriteKey is write_key: insert-or-replace at id, refusing any write whose
// timestamp_created is not strictly greater than the stored one.
func (e *Engine) WriteKey(key *model.Key) error {
	tx, err := e.begin()
	if err != nil {
		return err
	}

	var existing keyRow
	err = tx.SelectOne(&existing, "SELECT * FROM keys WHERE id = ?", key.ID)
	switch {
	case err == sql.ErrNoRows:
		row := keyToRow(key)
		if err := tx.Insert(row); err != nil {
			return e.rollback(tx, regerrors.New(regerrors.SqliteError, "inserting key: %v", err))
		}
	case err != nil:
		return e.rollback(tx, regerrors.New(regerrors.SqliteError, "selecting key: %v", err))
	default:
		if existing.TimestampCreated >= int64(key.TimestampCreated) {
			return e.rollback(tx, regerrors.New(regerrors.KeyAlreadyExistsNewerTimestamp,
				"key %s has a newer stored timestamp_created", key.ID))
		}
		row := keyToRow(key)
		row.TimestampPublished = existing.TimestampPublished
		row.Weight = existing.Weight
		if _, err := tx.Update(row); err != nil {
			return e.rollback(tx, regerrors.New(regerrors.SqliteError, "updating key: %v", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return regerrors.New(regerrors.SqliteError, "committing write_key: %v", err)
	}
	return nil
}

// GetKey fetches a key row by id, or nil if none exists.
func (e *Engine) GetKey(id string) (*model.Key, error) {
	var row keyRow
	err := e.dbMap.SelectOne(&row, "SELECT * FROM keys WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, regerrors.New(regerrors.SqliteError, "selecting key: %v", err)
	}
	return rowToKey(&row), nil
}

// SetKeyPublished bumps timestamp_published on a key, used when this node
// fans a key out to its neighbors.
func (e *Engine) SetKeyPublished(id string, now uint64) error {
	_, err := e.dbMap.Exec("UPDATE keys SET timestamp_published = ? WHERE id = ?", int64(now), id)
	if err != nil {
		return regerrors.New(regerrors.SqliteError, "updating timestamp_published: %v", err)
	}
	return nil
}

// TouchKeyAccess is update_key_timestamp: upsert into KEY_ACCESS.
func (e *Engine) TouchKeyAccess(id string, now uint64) error {
	tx, err := e.begin()
	if err != nil {
		return err
	}

	var existing keyAccessRow
	err = tx.SelectOne(&existing, "SELECT * FROM key_access WHERE id = ?", id)
	switch {
	case err == sql.ErrNoRows:
		if err := tx.Insert(&keyAccessRow{ID: id, TimestampAccessed: int64(now)}); err != nil {
			return e.rollback(tx, regerrors.New(regerrors.SqliteError, "inserting key_access: %v", err))
		}
	case err != nil:
		return e.rollback(tx, regerrors.New(regerrors.SqliteError, "selecting key_access: %v", err))
	default:
		existing.TimestampAccessed = int64(now)
		if _, err := tx.Update(&existing); err != nil {
			return e.rollback(tx, regerrors.New(regerrors.SqliteError, "updating key_access: %v", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return regerrors.New(regerrors.SqliteError, "committing update_key_timestamp: %v", err)
	}
	return nil
}

// StaleKeys is get_stale_keys: rows whose timestamp_published <= threshold
// OR whose KEY_ACCESS row is <= threshold (missing access row counts as 0,
// i.e. always stale) — the pinned decision from SPEC_FULL.md §9.
func (e *Engine) StaleKeys(threshold uint64) ([]*model.Key, error) {
	var rows []keyRow
	_, err := e.dbMap.Select(&rows, `
		SELECT k.* FROM keys k
		LEFT JOIN key_access ka ON ka.id = k.id
		WHERE k.timestamp_published <= ? OR COALESCE(ka.timestamp_accessed, 0) <= ?`,
		int64(threshold), int64(threshold))
	if err != nil {
		return nil, regerrors.New(regerrors.SqliteError, "selecting stale keys: %v", err)
	}
	keys := make([]*model.Key, len(rows))
	for i := range rows {
		keys[i] = rowToKey(&rows[i])
	}
	return keys, nil
}

// ClearExpiredKeys is clear_expired_keys: deletes keys whose
// timestamp_created <= threshold and which have zero surviving rows in
// RECORDS (of either kind — by the time this runs, clear_expired has
// already removed the rows that were themselves past expiry).
func (e *Engine) ClearExpiredKeys(threshold uint64) (int, error) {
	res, err := e.dbMap.Exec(`
		DELETE FROM keys
		WHERE timestamp_created <= ?
		AND id NOT IN (SELECT DISTINCT key_id FROM records)`,
		int64(threshold))
	if err != nil {
		return 0, regerrors.New(regerrors.SqliteError, "deleting expired keys: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, regerrors.New(regerrors.SqliteError, "counting deleted keys: %v", err)
	}
	return int(n), nil
}

// AllKeyIds lists every key id currently stored, used by the
// get_stale_local_records domain operation to scan for host-held stale
// records across the whole keyspace (it carries no key_id argument itself —
// see SPEC_FULL.md §11).
func (e *Engine) AllKeyIds() ([]string, error) {
	var ids []string
	_, err := e.dbMap.Select(&ids, "SELECT id FROM keys")
	if err != nil {
		return nil, regerrors.New(regerrors.SqliteError, "listing key ids: %v", err)
	}
	return ids, nil
}

// writeRecordRow is the shared triple-guarded insert-or-replace used by both
// write_record and write_tombstone: within a transaction, compare against
// any existing row at the triple and refuse to overwrite a row whose
// timestamp_issued is greater-or-equal, rather than relying on
// dialect-specific ON CONFLICT syntax that SQLite and MySQL do not share.
func (e *Engine) writeRecordRow(row *recordRow) (bool, error) {
	tx, err := e.begin()
	if err != nil {
		return false, err
	}

	var existing recordRow
	err = tx.SelectOne(&existing, `
		SELECT * FROM records WHERE key_id = ? AND issued_by = ? AND peer_id = ?`,
		row.KeyId, row.IssuedBy, row.PeerId)
	switch {
	case err == sql.ErrNoRows:
		if err := tx.Insert(row); err != nil {
			return false, e.rollback(tx, regerrors.New(regerrors.SqliteError, "inserting record: %v", err))
		}
	case err != nil:
		return false, e.rollback(tx, regerrors.New(regerrors.SqliteError, "selecting record: %v", err))
	default:
		if existing.TimestampIssued >= row.TimestampIssued {
			if err := tx.Rollback(); err != nil {
				e.log.Error(err, "transaction rollback failed")
			}
			return false, nil
		}
		if _, err := tx.Delete(&existing); err != nil {
			return false, e.rollback(tx, regerrors.New(regerrors.SqliteError, "replacing record: %v", err))
		}
		if err := tx.Insert(row); err != nil {
			return false, e.rollback(tx, regerrors.New(regerrors.SqliteError, "replacing record: %v", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return false, regerrors.New(regerrors.SqliteError, "committing record write: %v", err)
	}
	return true, nil
}

// WriteRecord is write_record: insert-or-replace at the triple, refusing to
// downgrade timestamp_issued.
func (e *Engine) WriteRecord(record *model.Record) (bool, error) {
	row, err := recordToRow(record)
	if err != nil {
		return false, regerrors.New(regerrors.InternalError, "encoding record: %v", err)
	}
	return e.writeRecordRow(row)
}

// WriteTombstone is write_tombstone: insert-or-replace at the triple,
// refusing to downgrade timestamp_issued.
func (e *Engine) WriteTombstone(t *model.Tombstone) (bool, error) {
	return e.writeRecordRow(tombstoneToRow(t))
}

// UpdateRecord is update_record: wraps WriteRecord with the capacity rule of
// §4.4/§4.5. Host records (peer_id == hostPeerId) bypass the RecordsLimit.
func (e *Engine) UpdateRecord(record *model.Record, hostPeerId string) (bool, error) {
	if record.Metadata.PeerId == hostPeerId {
		return e.WriteRecord(record)
	}

	tx, err := e.begin()
	if err != nil {
		return false, err
	}

	n, err := tx.SelectInt(`
		SELECT COUNT(*) FROM records
		WHERE key_id = ? AND peer_id != ? AND is_tombstoned = 0`,
		record.Metadata.KeyId, hostPeerId)
	if err != nil {
		return false, e.rollback(tx, regerrors.New(regerrors.SqliteError, "counting records: %v", err))
	}

	if n < model.RecordsLimit {
		if err := tx.Commit(); err != nil {
			return false, regerrors.New(regerrors.SqliteError, "committing capacity check: %v", err)
		}
		return e.WriteRecord(record)
	}

	var victim recordRow
	err = tx.SelectOne(&victim, `
		SELECT * FROM records
		WHERE key_id = ? AND peer_id != ? AND is_tombstoned = 0
		ORDER BY weight ASC, timestamp_created ASC
		LIMIT 1`,
		record.Metadata.KeyId, hostPeerId)
	if err == sql.ErrNoRows {
		return false, e.rollback(tx, regerrors.New(regerrors.InternalError,
			"capacity reached but no eviction candidate found"))
	}
	if err != nil {
		return false, e.rollback(tx, regerrors.New(regerrors.SqliteError, "selecting eviction candidate: %v", err))
	}

	admits := record.Weight > uint32(victim.Weight) ||
		(record.Weight == uint32(victim.Weight) && record.TimestampCreated > uint64(victim.TimestampCreated))
	if !admits {
		if err := tx.Rollback(); err != nil {
			e.log.Error(err, "transaction rollback failed")
		}
		return false, regerrors.New(regerrors.ValuesLimitExceeded,
			"key %s is at capacity and incoming record does not outweigh the eviction candidate", record.Metadata.KeyId)
	}

	if _, err := tx.Delete(&victim); err != nil {
		return false, e.rollback(tx, regerrors.New(regerrors.SqliteError, "evicting record: %v", err))
	}
	if err := tx.Commit(); err != nil {
		return false, regerrors.New(regerrors.SqliteError, "committing eviction: %v", err)
	}

	return e.WriteRecord(record)
}

// DeleteRecord is delete_record: removes the row at the triple, reporting
// whether one existed.
func (e *Engine) DeleteRecord(keyId, issuedBy, peerId string) (bool, error) {
	res, err := e.dbMap.Exec(`
		DELETE FROM records WHERE key_id = ? AND issued_by = ? AND peer_id = ?`,
		keyId, issuedBy, peerId)
	if err != nil {
		return false, regerrors.New(regerrors.SqliteError, "deleting record: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, regerrors.New(regerrors.SqliteError, "counting deleted records: %v", err)
	}
	return n > 0, nil
}

// GetRecords is get_records: active (non-tombstoned, non-expired) records
// for a key, ordered by weight descending.
func (e *Engine) GetRecords(keyId string, now, expiredTimeout uint64) ([]*model.Record, error) {
	threshold := thresholdSub(now, expiredTimeout)
	var rows []recordRow
	_, err := e.dbMap.Select(&rows, `
		SELECT * FROM records
		WHERE key_id = ? AND is_tombstoned = 0 AND timestamp_created > ?
		ORDER BY weight DESC`,
		keyId, int64(threshold))
	if err != nil {
		return nil, regerrors.New(regerrors.SqliteError, "selecting records: %v", err)
	}
	out := make([]*model.Record, 0, len(rows))
	for i := range rows {
		rec, err := rowToRecord(&rows[i])
		if err != nil {
			return nil, regerrors.New(regerrors.InternalError, "decoding record: %v", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetTombstones is get_tombstones: tombstone rows for a key not yet expired.
func (e *Engine) GetTombstones(keyId string, now, expiredTimeout uint64) ([]*model.Tombstone, error) {
	threshold := thresholdSub(now, expiredTimeout)
	var rows []recordRow
	_, err := e.dbMap.Select(&rows, `
		SELECT * FROM records
		WHERE key_id = ? AND is_tombstoned = 1 AND timestamp_issued > ?`,
		keyId, int64(threshold))
	if err != nil {
		return nil, regerrors.New(regerrors.SqliteError, "selecting tombstones: %v", err)
	}
	out := make([]*model.Tombstone, len(rows))
	for i := range rows {
		out[i] = rowToTombstone(&rows[i])
	}
	return out, nil
}

// GetLocalStaleRecords is get_local_stale_records: host-held records older
// than threshold, per SPEC_FULL.md §11 (distinct from evict_stale, which
// operates on keys rather than individual host records).
func (e *Engine) GetLocalStaleRecords(keyId string, threshold uint64, hostPeerId string) ([]*model.Record, error) {
	var rows []recordRow
	_, err := e.dbMap.Select(&rows, `
		SELECT * FROM records
		WHERE key_id = ? AND peer_id = ? AND is_tombstoned = 0 AND timestamp_created <= ?`,
		keyId, hostPeerId, int64(threshold))
	if err != nil {
		return nil, regerrors.New(regerrors.SqliteError, "selecting local stale records: %v", err)
	}
	out := make([]*model.Record, 0, len(rows))
	for i := range rows {
		rec, err := rowToRecord(&rows[i])
		if err != nil {
			return nil, regerrors.New(regerrors.InternalError, "decoding record: %v", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ClearExpiredRecords is clear_expired_records: deletes non-tombstoned,
// non-host records older than threshold.
func (e *Engine) ClearExpiredRecords(threshold uint64, hostPeerId string) (int, error) {
	res, err := e.dbMap.Exec(`
		DELETE FROM records
		WHERE is_tombstoned = 0 AND peer_id != ? AND timestamp_created <= ?`,
		hostPeerId, int64(threshold))
	if err != nil {
		return 0, regerrors.New(regerrors.SqliteError, "deleting expired records: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, regerrors.New(regerrors.SqliteError, "counting deleted records: %v", err)
	}
	return int(n), nil
}

// ClearExpiredTombstones is clear_expired_tombstones: deletes tombstones
// whose timestamp_issued <= threshold.
func (e *Engine) ClearExpiredTombstones(threshold uint64) (int, error) {
	res, err := e.dbMap.Exec(`
		DELETE FROM records WHERE is_tombstoned = 1 AND timestamp_issued <= ?`,
		int64(threshold))
	if err != nil {
		return 0, regerrors.New(regerrors.SqliteError, "deleting expired tombstones: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, regerrors.New(regerrors.SqliteError, "counting deleted tombstones: %v", err)
	}
	return int(n), nil
}

