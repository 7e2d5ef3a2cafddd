package service

import (
	"github.com/meshregistry/registry/canon"
	"github.com/meshregistry/registry/identity"
	"github.com/meshregistry/registry/model"
	"github.com/meshregistry/registry/provenance"
	"github.com/meshregistry/registry/regerrors"
)

// verifyRecord implements "record.verify(now)": timestamp bounds on the
// record itself, then metadata.verify(now), then both signatures.
func (r *Registry) verifyRecord(record *model.Record, now, expiredTimeout uint64) error {
	if record.TimestampCreated > now {
		return regerrors.New(regerrors.InvalidRecordTimestamp, "record timestamp_created %d exceeds now %d", record.TimestampCreated, now)
	}
	if now >= expiredTimeout && record.TimestampCreated <= now-expiredTimeout {
		return regerrors.New(regerrors.RecordAlreadyExpired, "record timestamp_created %d is already expired at %d", record.TimestampCreated, now)
	}

	md := record.Metadata
	if md.TimestampIssued > now {
		return regerrors.New(regerrors.InvalidRecordMetadataTimestamp, "record metadata timestamp_issued %d exceeds now %d", md.TimestampIssued, now)
	}

	metadataBytes := canon.RecordMetadataBytes(md.KeyId, md.IssuedBy, md.PeerId, md.TimestampIssued, md.Solution, md.Value, md.RelayId, md.ServiceId)

	issuerPub, err := r.verifyPublicKey(md.IssuedBy)
	if err != nil {
		return err
	}
	metadataDigest := canon.RecordMetadataDigest(md.KeyId, md.IssuedBy, md.PeerId, md.TimestampIssued, md.Solution, md.Value, md.RelayId, md.ServiceId)
	if err := identity.Verify(issuerPub, metadataDigest[:], md.IssuerSignature); err != nil {
		return regerrors.New(regerrors.InvalidRecordMetadataSignature, "record metadata signature verification failed for issuer %s: %v", md.IssuedBy, err)
	}

	holderPub, err := r.verifyPublicKey(md.PeerId)
	if err != nil {
		return err
	}
	recordDigest := canon.RecordDigest(metadataBytes, md.IssuerSignature, record.TimestampCreated)
	if err := identity.Verify(holderPub, recordDigest[:], record.Signature); err != nil {
		return regerrors.New(regerrors.InvalidRecordSignature, "record signature verification failed for holder %s: %v", md.PeerId, err)
	}

	return nil
}

// thresholdSub is re-declared here rather than exported from storage, since
// service has no business depending on storage's row-layer internals for a
// one-line helper.
func thresholdSub(now, timeout uint64) uint64 {
	if timeout > now {
		return 0
	}
	return now - timeout
}

// putRecord implements put_record / put_host_record. isHost adds the
// metadata.peer_id == local host check and the host-record tetraplet check
// on top of the weight, timestamp and weight-result checks both share.
func (r *Registry) putRecord(metadata model.RecordMetadata, timestampCreated uint64, holderSignature []byte, weight model.WeightResult, currentTimestamp uint64, tetraplets provenance.CallTetraplets, isHost bool) (res Result[*model.Record]) {
	var err error
	op := "put_record"
	if isHost {
		op = "put_host_record"
	}
	start := r.clk.Now()
	defer func() { r.observe(op, err, start) }()

	if err = provenance.CheckWeightTetraplet(tetraplets, 3, -1, r.hostPeerId); err != nil {
		return fail[*model.Record](err)
	}
	if err = provenance.CheckTimestampTetraplet(tetraplets, 4, r.hostPeerId); err != nil {
		return fail[*model.Record](err)
	}
	if err = provenance.CheckWeightResult(toProvenanceWeight(weight), metadata.IssuedBy); err != nil {
		return fail[*model.Record](err)
	}

	if isHost {
		if metadata.PeerId != r.hostPeerId {
			err = regerrors.New(regerrors.InvalidSetHostValueResult, "put_host_record metadata.peer_id %s does not match local host %s", metadata.PeerId, r.hostPeerId)
			return fail[*model.Record](err)
		}
		// The signature argument (position 2) must itself be produced by
		// this host's put_host_record, per the host-record tetraplet check
		// of SPEC_FULL.md §4.2 — distinct from the timestamp/weight checks
		// above, which cover positions 4 and 3.
		if err = provenance.CheckHostRecordTetraplet(tetraplets, 2, metadata.PeerId); err != nil {
			return fail[*model.Record](err)
		}
	}

	record := &model.Record{
		Metadata:         metadata,
		TimestampCreated: timestampCreated,
		Signature:        holderSignature,
		Weight:           weight.Weight,
	}

	expiredTimeout, _, terr := r.thresholds()
	if terr != nil {
		err = terr
		return fail[*model.Record](err)
	}

	if err = r.verifyRecord(record, currentTimestamp, expiredTimeout); err != nil {
		return fail[*model.Record](err)
	}

	key, kerr := r.store.GetKey(metadata.KeyId)
	if kerr != nil {
		err = kerr
		return fail[*model.Record](err)
	}
	if key == nil {
		err = regerrors.New(regerrors.KeyNotExists, "key %s does not exist", metadata.KeyId)
		return fail[*model.Record](err)
	}

	if _, err = r.store.UpdateRecord(record, r.hostPeerId); err != nil {
		return fail[*model.Record](err)
	}

	return ok(record)
}

// PutRecord is put_record.
func (r *Registry) PutRecord(metadata model.RecordMetadata, timestampCreated uint64, holderSignature []byte, weight model.WeightResult, currentTimestamp uint64, tetraplets provenance.CallTetraplets) Result[*model.Record] {
	return r.putRecord(metadata, timestampCreated, holderSignature, weight, currentTimestamp, tetraplets, false)
}

// PutHostRecord is put_host_record: the holder signature comes from the
// local host's own identity.Signer rather than a caller-supplied value.
func (r *Registry) PutHostRecord(metadata model.RecordMetadata, timestampCreated uint64, weight model.WeightResult, currentTimestamp uint64, tetraplets provenance.CallTetraplets) Result[*model.Record] {
	metadata.PeerId = r.hostPeerId
	metadataBytes := canon.RecordMetadataBytes(metadata.KeyId, metadata.IssuedBy, metadata.PeerId, metadata.TimestampIssued, metadata.Solution, metadata.Value, metadata.RelayId, metadata.ServiceId)
	digest := canon.RecordDigest(metadataBytes, metadata.IssuerSignature, timestampCreated)
	signature, err := r.hostSigner.Sign(digest[:])
	if err != nil {
		return fail[*model.Record](regerrors.New(regerrors.InternalError, "signing host record: %v", err))
	}
	return r.putRecord(metadata, timestampCreated, signature, weight, currentTimestamp, tetraplets, true)
}

// GetRecords is get_records.
func (r *Registry) GetRecords(keyId string, currentTimestamp uint64, tetraplets provenance.CallTetraplets) (res Result[[]*model.Record]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("get_records", err, start) }()

	if err = provenance.CheckTimestampTetraplet(tetraplets, 1, r.hostPeerId); err != nil {
		return fail[[]*model.Record](err)
	}

	key, kerr := r.store.GetKey(keyId)
	if kerr != nil {
		err = kerr
		return fail[[]*model.Record](err)
	}
	if key == nil {
		err = regerrors.New(regerrors.KeyNotExists, "key %s does not exist", keyId)
		return fail[[]*model.Record](err)
	}

	expiredTimeout, _, terr := r.thresholds()
	if terr != nil {
		err = terr
		return fail[[]*model.Record](err)
	}

	records, rerr := r.store.GetRecords(keyId, currentTimestamp, expiredTimeout)
	if rerr != nil {
		err = rerr
		return fail[[]*model.Record](err)
	}

	if err = r.store.TouchKeyAccess(keyId, currentTimestamp); err != nil {
		return fail[[]*model.Record](err)
	}

	return ok(records)
}

// RepublishRecords is republish_records: verify each incoming record, merge
// with the existing set for the shared key, and persist the result.
func (r *Registry) RepublishRecords(records []*model.Record, weights []model.WeightResult, currentTimestamp uint64, tetraplets provenance.CallTetraplets) (res Result[int]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("republish_records", err, start) }()

	if len(records) == 0 {
		err = regerrors.New(regerrors.KeysArgumentEmpty, "republish_records requires a non-empty batch")
		return fail[int](err)
	}
	if len(weights) != len(records) {
		err = regerrors.New(regerrors.MissingRecordWeight, "republish_records received %d records but %d weights", len(records), len(weights))
		return fail[int](err)
	}
	if err = provenance.CheckTimestampTetraplet(tetraplets, 2, r.hostPeerId); err != nil {
		return fail[int](err)
	}

	sharedKeyId := records[0].Metadata.KeyId

	expiredTimeout, _, terr := r.thresholds()
	if terr != nil {
		err = terr
		return fail[int](err)
	}

	for i, record := range records {
		if record.Metadata.KeyId != sharedKeyId {
			err = regerrors.New(regerrors.RecordsPublishingError, "record %d key_id %s does not match shared key_id %s", i, record.Metadata.KeyId, sharedKeyId)
			return fail[int](err)
		}
		if err = provenance.CheckWeightTetraplet(tetraplets, 1, i, r.hostPeerId); err != nil {
			return fail[int](err)
		}
		if err = provenance.CheckWeightResult(toProvenanceWeight(weights[i]), record.Metadata.IssuedBy); err != nil {
			return fail[int](err)
		}
		if err = r.verifyRecord(record, currentTimestamp, expiredTimeout); err != nil {
			return fail[int](err)
		}
		record.Weight = weights[i].Weight
	}

	existing, eerr := r.store.GetRecords(sharedKeyId, currentTimestamp, expiredTimeout)
	if eerr != nil {
		err = eerr
		return fail[int](err)
	}

	merged := MergeRecords(append(existing, records...))

	written := 0
	for _, record := range merged {
		wrote, werr := r.store.UpdateRecord(record, r.hostPeerId)
		if werr != nil {
			err = werr
			return fail[int](err)
		}
		if wrote {
			written++
		}
	}

	if err = r.store.TouchKeyAccess(sharedKeyId, currentTimestamp); err != nil {
		return fail[int](err)
	}

	return ok(written)
}

// GetRecordMetadataBytes is get_record_metadata_bytes.
func GetRecordMetadataBytes(md model.RecordMetadata) []byte {
	return canon.RecordMetadataBytes(md.KeyId, md.IssuedBy, md.PeerId, md.TimestampIssued, md.Solution, md.Value, md.RelayId, md.ServiceId)
}

// GetRecordBytes is get_record_bytes.
func GetRecordBytes(md model.RecordMetadata, timestampCreated uint64) []byte {
	metadataBytes := GetRecordMetadataBytes(md)
	return canon.RecordBytes(metadataBytes, md.IssuerSignature, timestampCreated)
}
