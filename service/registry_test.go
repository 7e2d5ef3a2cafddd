package service

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/jmhodges/clock"

	"github.com/meshregistry/registry/canon"
	"github.com/meshregistry/registry/config"
	"github.com/meshregistry/registry/identity"
	"github.com/meshregistry/registry/model"
	"github.com/meshregistry/registry/provenance"
	"github.com/meshregistry/registry/rlog"
	"github.com/meshregistry/registry/storage"
)

// testHostPriv is the local host's signing key and testHostPeerId the peer id
// it corresponds to, so records countersigned by the host verify.
var testHostPriv = ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
var testHostPeerId = identity.NewEd25519PeerId(testHostPriv.Public().(ed25519.PublicKey))

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	store, err := storage.Open("sqlite3", "file:"+t.Name()+"?mode=memory&cache=shared", rlog.Discard())
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfgPath := filepath.Join(t.TempDir(), "Config.toml")
	cfgStore, err := config.NewStore(cfgPath, config.Config{
		ExpiredTimeoutSecs: 100,
		StaleTimeoutSecs:   50,
	})
	if err != nil {
		t.Fatalf("opening config store: %v", err)
	}

	hostSigner := identity.NewSoftwareEd25519Signer(testHostPeerId, testHostPriv)

	return New(store, cfgStore, identity.NewLRUCache(64), nil, rlog.Discard(), clock.NewFake(), testHostPeerId, hostSigner)
}

func timestampTetraplet(argLen, argIndex int, host string) provenance.CallTetraplets {
	ct := make(provenance.CallTetraplets, argLen)
	ct[argIndex] = []provenance.Tetraplet{{ServiceId: "peer", FuncName: "timestamp_sec", PeerId: host}}
	return ct
}

func withWeightTetraplet(ct provenance.CallTetraplets, argIndex int, host string) provenance.CallTetraplets {
	ct[argIndex] = []provenance.Tetraplet{{ServiceId: "trust-graph", FuncName: "get_weight", PeerId: host}}
	return ct
}

func withHostRecordTetraplet(ct provenance.CallTetraplets, argIndex int, holder string) provenance.CallTetraplets {
	ct[argIndex] = []provenance.Tetraplet{{ServiceId: "registry", FuncName: "put_host_record", PeerId: holder}}
	return ct
}

// registerTestKey signs and registers a key owned by an ed25519 peer,
// returning its peer id, private key, and the assigned key id.
func registerTestKey(t *testing.T, r *Registry, label string, timestampCreated, now uint64) (ownerPeerId string, ownerPriv ed25519.PrivateKey, keyId string) {
	t.Helper()
	pub, priv, _ := ed25519.GenerateKey(nil)
	owner := identity.NewEd25519PeerId(pub)

	digest := canon.KeyDigest(label, owner, timestampCreated, nil, nil)
	sig := ed25519.Sign(priv, digest[:])

	tetraplets := timestampTetraplet(8, 7, testHostPeerId)
	tetraplets = withWeightTetraplet(tetraplets, 6, testHostPeerId)

	res := r.RegisterKey(label, nil, owner, timestampCreated, nil, nil, sig,
		model.WeightResult{Success: true, Weight: 0, PeerId: owner}, now, tetraplets)
	if !res.Success {
		t.Fatalf("register_key failed: %s", res.Error)
	}
	return owner, priv, res.Value
}

// TestRegisterAndRoundTrip is scenario S1.
func TestRegisterAndRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	owner, _, keyId := registerTestKey(t, r, "α", 100, 100)

	expectedId := identity.KeyID("α", owner)
	if keyId != expectedId {
		t.Fatalf("expected key id %s, got %s", expectedId, keyId)
	}

	got := r.GetKeyMetadata(keyId, 101, timestampTetraplet(2, 1, testHostPeerId))
	if !got.Success {
		t.Fatalf("get_key_metadata failed: %s", got.Error)
	}
	if got.Value.Label != "α" || got.Value.OwnerPeerId != owner || got.Value.TimestampCreated != 100 {
		t.Fatalf("unexpected key metadata: %+v", got.Value)
	}
}

// TestPutAndGetRecord is scenario S2.
func TestPutAndGetRecord(t *testing.T) {
	r := newTestRegistry(t)
	owner, _, keyId := registerTestKey(t, r, "α", 100, 100)

	holderPub, holderPriv, _ := ed25519.GenerateKey(nil)
	holder := identity.NewEd25519PeerId(holderPub)

	metadata := model.RecordMetadata{
		KeyId:           keyId,
		IssuedBy:        owner,
		PeerId:          holder,
		TimestampIssued: 110,
		Value:           "v",
		RelayId:         []string{"R"},
		ServiceId:       []string{"S"},
	}
	// Sign metadata with a freshly generated issuer key, independent of the
	// key's owner — put_record's issued_by need not be the key owner.
	issuerPub, issuerPriv, _ := ed25519.GenerateKey(nil)
	issuer := identity.NewEd25519PeerId(issuerPub)
	metadata.IssuedBy = issuer
	metadataBytes := canon.RecordMetadataBytes(metadata.KeyId, metadata.IssuedBy, metadata.PeerId, metadata.TimestampIssued, metadata.Solution, metadata.Value, metadata.RelayId, metadata.ServiceId)
	metadataDigest := canon.RecordMetadataDigest(metadata.KeyId, metadata.IssuedBy, metadata.PeerId, metadata.TimestampIssued, metadata.Solution, metadata.Value, metadata.RelayId, metadata.ServiceId)
	metadata.IssuerSignature = ed25519.Sign(issuerPriv, metadataDigest[:])

	timestampCreated := uint64(120)
	recordDigest := canon.RecordDigest(metadataBytes, metadata.IssuerSignature, timestampCreated)
	holderSig := ed25519.Sign(holderPriv, recordDigest[:])

	tetraplets := timestampTetraplet(5, 4, testHostPeerId)
	tetraplets = withWeightTetraplet(tetraplets, 3, testHostPeerId)

	putRes := r.PutRecord(metadata, timestampCreated, holderSig,
		model.WeightResult{Success: true, Weight: 5, PeerId: issuer}, 120, tetraplets)
	if !putRes.Success {
		t.Fatalf("put_record failed: %s", putRes.Error)
	}

	getRes := r.GetRecords(keyId, 121, timestampTetraplet(2, 1, testHostPeerId))
	if !getRes.Success {
		t.Fatalf("get_records failed: %s", getRes.Error)
	}
	if len(getRes.Value) != 1 || getRes.Value[0].Metadata.Value != "v" {
		t.Fatalf("expected one record with value \"v\", got %+v", getRes.Value)
	}
}

func TestRegisterKeyRejectsFutureTimestamp(t *testing.T) {
	r := newTestRegistry(t)
	pub, priv, _ := ed25519.GenerateKey(nil)
	owner := identity.NewEd25519PeerId(pub)

	digest := canon.KeyDigest("label", owner, 200, nil, nil)
	sig := ed25519.Sign(priv, digest[:])

	tetraplets := timestampTetraplet(8, 7, testHostPeerId)
	tetraplets = withWeightTetraplet(tetraplets, 6, testHostPeerId)

	res := r.RegisterKey("label", nil, owner, 200, nil, nil, sig,
		model.WeightResult{Success: true, Weight: 0, PeerId: owner}, 100, tetraplets)
	if res.Success {
		t.Fatalf("expected register_key to reject a timestamp_created in the future")
	}
}

func TestRepublishKeyIsNoOpWhenStoredIsNewer(t *testing.T) {
	r := newTestRegistry(t)
	owner, priv, keyId := registerTestKey(t, r, "α", 100, 100)

	olderDigest := canon.KeyDigest("α", owner, 50, nil, nil)
	olderSig := ed25519.Sign(priv, olderDigest[:])
	older := &model.Key{ID: keyId, Label: "α", OwnerPeerId: owner, TimestampCreated: 50, Signature: olderSig}

	tetraplets := timestampTetraplet(3, 2, testHostPeerId)
	tetraplets = withWeightTetraplet(tetraplets, 1, testHostPeerId)

	res := r.RepublishKey(older, model.WeightResult{Success: true, Weight: 0, PeerId: owner}, 100, tetraplets)
	if !res.Success {
		t.Fatalf("republish_key with a stale timestamp should succeed as a no-op, got error: %s", res.Error)
	}

	got := r.GetKeyMetadata(keyId, 101, timestampTetraplet(2, 1, testHostPeerId))
	if !got.Success || got.Value.TimestampCreated != 100 {
		t.Fatalf("expected the newer stored timestamp_created (100) to survive, got %+v", got.Value)
	}
}
