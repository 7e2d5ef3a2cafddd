package service

import (
	"crypto/ed25519"
	"testing"

	"github.com/meshregistry/registry/canon"
	"github.com/meshregistry/registry/identity"
	"github.com/meshregistry/registry/model"
)

func TestClearHostRecordRemovesTheHostTriple(t *testing.T) {
	r := newTestRegistry(t)
	owner, ownerPriv, keyId := registerTestKey(t, r, "α", 0, 0)

	metadata := model.RecordMetadata{KeyId: keyId, IssuedBy: owner, PeerId: testHostPeerId, TimestampIssued: 0, Value: "v"}
	metadataDigest := canon.RecordMetadataDigest(metadata.KeyId, metadata.IssuedBy, metadata.PeerId, metadata.TimestampIssued, metadata.Solution, metadata.Value, metadata.RelayId, metadata.ServiceId)
	metadata.IssuerSignature = ed25519.Sign(ownerPriv, metadataDigest[:])

	hostTetraplets := timestampTetraplet(5, 4, testHostPeerId)
	hostTetraplets = withWeightTetraplet(hostTetraplets, 3, testHostPeerId)
	hostTetraplets = withHostRecordTetraplet(hostTetraplets, 2, testHostPeerId)
	putRes := r.PutHostRecord(metadata, 0, model.WeightResult{Success: true, Weight: 0, PeerId: owner}, 0, hostTetraplets)
	if !putRes.Success {
		t.Fatalf("put_host_record failed: %s", putRes.Error)
	}

	clearRes := r.ClearHostRecord(keyId, owner, 1, timestampTetraplet(2, 1, testHostPeerId))
	if !clearRes.Success {
		t.Fatalf("clear_host_record failed: %s", clearRes.Error)
	}

	again := r.ClearHostRecord(keyId, owner, 2, timestampTetraplet(2, 1, testHostPeerId))
	if again.Success {
		t.Fatalf("expected clear_host_record to fail when no host record remains")
	}
}

// TestEvictStaleSurfacesWithoutDeleting is scenario S6: a stale key is
// surfaced by evict_stale but its metadata remains retrievable afterward.
func TestEvictStaleSurfacesWithoutDeleting(t *testing.T) {
	r := newTestRegistry(t)
	_, _, keyId := registerTestKey(t, r, "α", 0, 0)

	const staleTimeout = 50
	if res := r.SetStaleTimeout(staleTimeout); !res.Success {
		t.Fatalf("set_stale_timeout failed: %s", res.Error)
	}

	now := uint64(staleTimeout + 1)
	evictRes := r.EvictStale(now, timestampTetraplet(1, 0, testHostPeerId))
	if !evictRes.Success {
		t.Fatalf("evict_stale failed: %s", evictRes.Error)
	}
	if len(evictRes.Value) != 1 || evictRes.Value[0].Key.ID != keyId {
		t.Fatalf("expected exactly one stale key surfaced, got %+v", evictRes.Value)
	}

	got := r.GetKeyMetadata(keyId, now+1, timestampTetraplet(2, 1, testHostPeerId))
	if !got.Success {
		t.Fatalf("expected the key to still exist after evict_stale, got error: %s", got.Error)
	}
}

func TestClearExpiredCountsEachCategory(t *testing.T) {
	r := newTestRegistry(t)
	owner, ownerPriv, keyId := registerTestKey(t, r, "α", 0, 0)

	holderPub, holderPriv, _ := ed25519.GenerateKey(nil)
	holder := identity.NewEd25519PeerId(holderPub)

	metadata := model.RecordMetadata{KeyId: keyId, IssuedBy: owner, PeerId: holder, TimestampIssued: 0, Value: "v"}
	metadataBytes := canon.RecordMetadataBytes(metadata.KeyId, metadata.IssuedBy, metadata.PeerId, metadata.TimestampIssued, metadata.Solution, metadata.Value, metadata.RelayId, metadata.ServiceId)
	metadataDigest := canon.RecordMetadataDigest(metadata.KeyId, metadata.IssuedBy, metadata.PeerId, metadata.TimestampIssued, metadata.Solution, metadata.Value, metadata.RelayId, metadata.ServiceId)
	metadata.IssuerSignature = ed25519.Sign(ownerPriv, metadataDigest[:])
	recordDigest := canon.RecordDigest(metadataBytes, metadata.IssuerSignature, 0)
	holderSig := ed25519.Sign(holderPriv, recordDigest[:])

	putTetraplets := timestampTetraplet(5, 4, testHostPeerId)
	putTetraplets = withWeightTetraplet(putTetraplets, 3, testHostPeerId)
	putRes := r.PutRecord(metadata, 0, holderSig, model.WeightResult{Success: true, Weight: 1, PeerId: owner}, 0, putTetraplets)
	if !putRes.Success {
		t.Fatalf("put_record failed: %s", putRes.Error)
	}

	if res := r.SetExpiredTimeout(10); !res.Success {
		t.Fatalf("set_expired_timeout failed: %s", res.Error)
	}

	clearRes := r.ClearExpired(20, timestampTetraplet(1, 0, testHostPeerId))
	if !clearRes.Success {
		t.Fatalf("clear_expired failed: %s", clearRes.Error)
	}
	if clearRes.Value.Records != 1 {
		t.Fatalf("expected one expired record removed, got %+v", clearRes.Value)
	}
	if clearRes.Value.Keys != 1 {
		t.Fatalf("expected the key to be removed once its only record expired, got %+v", clearRes.Value)
	}
	if clearRes.Value.Tombstones != 0 {
		t.Fatalf("expected no tombstones removed, got %+v", clearRes.Value)
	}
}
