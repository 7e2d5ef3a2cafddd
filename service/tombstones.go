package service

import (
	"github.com/meshregistry/registry/canon"
	"github.com/meshregistry/registry/identity"
	"github.com/meshregistry/registry/model"
	"github.com/meshregistry/registry/provenance"
	"github.com/meshregistry/registry/regerrors"
)

// verifyTombstone mirrors verifyRecord but is signed only by the issuer —
// "add_tombstone/republish_tombstones: analogous to records but without a
// holder step."
func (r *Registry) verifyTombstone(t *model.Tombstone, now uint64) error {
	if t.TimestampIssued > now {
		return regerrors.New(regerrors.InvalidTombstoneTimestamp, "tombstone timestamp_issued %d exceeds now %d", t.TimestampIssued, now)
	}

	issuerPub, err := r.verifyPublicKey(t.IssuedBy)
	if err != nil {
		return err
	}
	digest := canon.TombstoneDigest(t.KeyId, t.IssuedBy, t.PeerId, t.TimestampIssued, t.Solution)
	if err := identity.Verify(issuerPub, digest[:], t.IssuerSignature); err != nil {
		return regerrors.New(regerrors.InvalidTombstoneSignature, "tombstone signature verification failed for issuer %s: %v", t.IssuedBy, err)
	}
	return nil
}

// AddTombstone is add_tombstone.
func (r *Registry) AddTombstone(t *model.Tombstone, currentTimestamp uint64, tetraplets provenance.CallTetraplets) (res Result[bool]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("add_tombstone", err, start) }()

	if err = provenance.CheckTimestampTetraplet(tetraplets, 5, r.hostPeerId); err != nil {
		return fail[bool](err)
	}
	if err = r.verifyTombstone(t, currentTimestamp); err != nil {
		return fail[bool](err)
	}

	written, werr := r.store.WriteTombstone(t)
	if werr != nil {
		err = werr
		return fail[bool](err)
	}

	return ok(written)
}

// RepublishTombstones is republish_tombstones.
func (r *Registry) RepublishTombstones(tombstones []*model.Tombstone, currentTimestamp uint64, tetraplets provenance.CallTetraplets) (res Result[int]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("republish_tombstones", err, start) }()

	if len(tombstones) == 0 {
		err = regerrors.New(regerrors.KeysArgumentEmpty, "republish_tombstones requires a non-empty batch")
		return fail[int](err)
	}
	if err = provenance.CheckTimestampTetraplet(tetraplets, 1, r.hostPeerId); err != nil {
		return fail[int](err)
	}

	sharedKeyId := tombstones[0].KeyId
	written := 0
	for i, t := range tombstones {
		if t.KeyId != sharedKeyId {
			err = regerrors.New(regerrors.TombstonesPublishingError, "tombstone %d key_id %s does not match shared key_id %s", i, t.KeyId, sharedKeyId)
			return fail[int](err)
		}
		if err = r.verifyTombstone(t, currentTimestamp); err != nil {
			return fail[int](err)
		}
		wrote, werr := r.store.WriteTombstone(t)
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

// GetTombstones is get_tombstones.
func (r *Registry) GetTombstones(keyId string, currentTimestamp uint64, tetraplets provenance.CallTetraplets) (res Result[[]*model.Tombstone]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("get_tombstones", err, start) }()

	if err = provenance.CheckTimestampTetraplet(tetraplets, 1, r.hostPeerId); err != nil {
		return fail[[]*model.Tombstone](err)
	}

	expiredTimeout, _, terr := r.thresholds()
	if terr != nil {
		err = terr
		return fail[[]*model.Tombstone](err)
	}

	tombstones, gerr := r.store.GetTombstones(keyId, currentTimestamp, expiredTimeout)
	if gerr != nil {
		err = gerr
		return fail[[]*model.Tombstone](err)
	}

	if err = r.store.TouchKeyAccess(keyId, currentTimestamp); err != nil {
		return fail[[]*model.Tombstone](err)
	}

	return ok(tombstones)
}

// GetTombstoneBytes is get_tombstone_bytes.
func GetTombstoneBytes(t *model.Tombstone) []byte {
	return canon.TombstoneBytes(t.KeyId, t.IssuedBy, t.PeerId, t.TimestampIssued, t.Solution)
}
