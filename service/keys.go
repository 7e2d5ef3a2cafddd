package service

import (
	"github.com/meshregistry/registry/canon"
	"github.com/meshregistry/registry/identity"
	"github.com/meshregistry/registry/model"
	"github.com/meshregistry/registry/provenance"
	"github.com/meshregistry/registry/regerrors"
)

func toProvenanceWeight(w model.WeightResult) provenance.WeightResult {
	return provenance.WeightResult{Success: w.Success, Weight: w.Weight, PeerId: w.PeerId, Error: w.Error}
}

// resolveOwner returns ownerOverride[0] if present, else callerPeerId, per
// register_key's "optional owner peer override (defaults to caller)".
func resolveOwner(ownerOverride []string, callerPeerId string) string {
	if len(ownerOverride) > 0 && ownerOverride[0] != "" {
		return ownerOverride[0]
	}
	return callerPeerId
}

func (r *Registry) verifyKeySignature(owner string, timestampCreated uint64, challenge, challengeType, signature []byte, label string) error {
	pub, err := r.verifyPublicKey(owner)
	if err != nil {
		return err
	}
	digest := canon.KeyDigest(label, owner, timestampCreated, challenge, challengeType)
	if err := identity.Verify(pub, digest[:], signature); err != nil {
		return regerrors.New(regerrors.InvalidKeySignature, "key signature verification failed for owner %s: %v", owner, err)
	}
	return nil
}

// RegisterKey is register_key.
func (r *Registry) RegisterKey(label string, ownerOverride []string, callerPeerId string, timestampCreated uint64, challenge, challengeType, signature []byte, weight model.WeightResult, currentTimestamp uint64, tetraplets provenance.CallTetraplets) (res Result[string]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("register_key", err, start) }()

	if err = provenance.CheckWeightTetraplet(tetraplets, 6, -1, r.hostPeerId); err != nil {
		return fail[string](err)
	}
	if err = provenance.CheckTimestampTetraplet(tetraplets, 7, r.hostPeerId); err != nil {
		return fail[string](err)
	}

	owner := resolveOwner(ownerOverride, callerPeerId)
	if err = provenance.CheckWeightResult(toProvenanceWeight(weight), owner); err != nil {
		return fail[string](err)
	}

	id := identity.KeyID(label, owner)

	if timestampCreated > currentTimestamp {
		err = regerrors.New(regerrors.InvalidKeyTimestamp, "timestamp_created %d exceeds current_timestamp %d", timestampCreated, currentTimestamp)
		return fail[string](err)
	}

	if err = r.verifyKeySignature(owner, timestampCreated, challenge, challengeType, signature, label); err != nil {
		return fail[string](err)
	}

	key := &model.Key{
		ID:               id,
		Label:            label,
		OwnerPeerId:      owner,
		TimestampCreated: timestampCreated,
		Challenge:        challenge,
		ChallengeType:    challengeType,
		Signature:        signature,
	}

	if err = r.store.WriteKey(key); err != nil {
		return fail[string](err)
	}
	if err = r.store.TouchKeyAccess(id, currentTimestamp); err != nil {
		return fail[string](err)
	}

	return ok(id)
}

// GetKeyMetadata is get_key_metadata.
func (r *Registry) GetKeyMetadata(keyId string, currentTimestamp uint64, tetraplets provenance.CallTetraplets) (res Result[*model.Key]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("get_key_metadata", err, start) }()

	if err = provenance.CheckTimestampTetraplet(tetraplets, 1, r.hostPeerId); err != nil {
		return fail[*model.Key](err)
	}

	if err = r.store.TouchKeyAccess(keyId, currentTimestamp); err != nil {
		return fail[*model.Key](err)
	}

	key, err := r.store.GetKey(keyId)
	if err != nil {
		return fail[*model.Key](err)
	}
	if key == nil {
		err = regerrors.New(regerrors.KeyNotExists, "key %s does not exist", keyId)
		return fail[*model.Key](err)
	}

	return ok(key)
}

// RepublishKey is republish_key: like register_key, but a stored row whose
// timestamp_created is already >= the incoming one is a successful no-op,
// not an error — this is what distinguishes republish from register.
func (r *Registry) RepublishKey(key *model.Key, weight model.WeightResult, currentTimestamp uint64, tetraplets provenance.CallTetraplets) (res Result[string]) {
	var err error
	start := r.clk.Now()
	defer func() { r.observe("republish_key", err, start) }()

	if err = provenance.CheckWeightTetraplet(tetraplets, 1, -1, r.hostPeerId); err != nil {
		return fail[string](err)
	}
	if err = provenance.CheckTimestampTetraplet(tetraplets, 2, r.hostPeerId); err != nil {
		return fail[string](err)
	}
	if err = provenance.CheckWeightResult(toProvenanceWeight(weight), key.OwnerPeerId); err != nil {
		return fail[string](err)
	}

	expectedId := identity.KeyID(key.Label, key.OwnerPeerId)
	if key.ID != expectedId {
		key.ID = expectedId
	}

	if key.TimestampCreated > currentTimestamp {
		err = regerrors.New(regerrors.InvalidKeyTimestamp, "timestamp_created %d exceeds current_timestamp %d", key.TimestampCreated, currentTimestamp)
		return fail[string](err)
	}

	if err = r.verifyKeySignature(key.OwnerPeerId, key.TimestampCreated, key.Challenge, key.ChallengeType, key.Signature, key.Label); err != nil {
		return fail[string](err)
	}

	writeErr := r.store.WriteKey(key)
	if writeErr != nil {
		if regerrors.Is(writeErr, regerrors.KeyAlreadyExistsNewerTimestamp) {
			// republish_key swallows this and reports success, unlike
			// register_key — SPEC_FULL.md §7.
			return ok(key.ID)
		}
		err = writeErr
		return fail[string](err)
	}

	if err = r.store.TouchKeyAccess(key.ID, currentTimestamp); err != nil {
		return fail[string](err)
	}

	return ok(key.ID)
}

// GetKeyBytes is get_key_bytes: the pure canonical-encoding function exposed
// so a caller can sign a Key without constructing one first.
func (r *Registry) GetKeyBytes(label string, ownerOverride []string, callerPeerId string, timestampCreated uint64, challenge, challengeType []byte) []byte {
	owner := resolveOwner(ownerOverride, callerPeerId)
	return canon.KeyBytes(label, owner, timestampCreated, challenge, challengeType)
}
