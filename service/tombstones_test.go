package service

import (
	"crypto/ed25519"
	"testing"

	"github.com/meshregistry/registry/canon"
	"github.com/meshregistry/registry/identity"
	"github.com/meshregistry/registry/model"
)

func signedTombstone(t *testing.T, keyId string, timestampIssued uint64) *model.Tombstone {
	t.Helper()
	pub, priv, _ := ed25519.GenerateKey(nil)
	issuer := identity.NewEd25519PeerId(pub)
	digest := canon.TombstoneDigest(keyId, issuer, "holder", timestampIssued, nil)
	sig := ed25519.Sign(priv, digest[:])
	return &model.Tombstone{
		KeyId:           keyId,
		IssuedBy:        issuer,
		PeerId:          "holder",
		TimestampIssued: timestampIssued,
		IssuerSignature: sig,
	}
}

func TestAddAndGetTombstone(t *testing.T) {
	r := newTestRegistry(t)
	tomb := signedTombstone(t, "k1", 50)

	addRes := r.AddTombstone(tomb, 100, timestampTetraplet(6, 5, testHostPeerId))
	if !addRes.Success {
		t.Fatalf("add_tombstone failed: %s", addRes.Error)
	}
	if !addRes.Value {
		t.Fatalf("expected add_tombstone to report the row as newly written")
	}

	getRes := r.GetTombstones("k1", 101, timestampTetraplet(2, 1, testHostPeerId))
	if !getRes.Success {
		t.Fatalf("get_tombstones failed: %s", getRes.Error)
	}
	if len(getRes.Value) != 1 || getRes.Value[0].IssuedBy != tomb.IssuedBy {
		t.Fatalf("expected one surviving tombstone from %s, got %+v", tomb.IssuedBy, getRes.Value)
	}
}

func TestAddTombstoneRejectsFutureTimestamp(t *testing.T) {
	r := newTestRegistry(t)
	tomb := signedTombstone(t, "k1", 200)

	res := r.AddTombstone(tomb, 100, timestampTetraplet(6, 5, testHostPeerId))
	if res.Success {
		t.Fatalf("expected add_tombstone to reject a timestamp_issued in the future")
	}
}

func TestRepublishTombstonesRejectsMismatchedKeyIds(t *testing.T) {
	r := newTestRegistry(t)
	tomb1 := signedTombstone(t, "k1", 10)
	tomb2 := signedTombstone(t, "k2", 10)

	res := r.RepublishTombstones(
		[]*model.Tombstone{tomb1, tomb2},
		100, timestampTetraplet(2, 1, testHostPeerId))
	if res.Success {
		t.Fatalf("expected republish_tombstones to reject a batch spanning multiple keys")
	}
}
