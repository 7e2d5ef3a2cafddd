package canon

import (
	"crypto/sha256"
	"testing"
)

func TestKeyBytesDeterministic(t *testing.T) {
	a := KeyBytes("label", "owner", 100, []byte("ch"), []byte("type"))
	b := KeyBytes("label", "owner", 100, []byte("ch"), []byte("type"))
	if string(a) != string(b) {
		t.Fatalf("KeyBytes is not deterministic: %x != %x", a, b)
	}
}

func TestKeyBytesVariesWithInput(t *testing.T) {
	a := KeyBytes("label", "owner", 100, nil, nil)
	b := KeyBytes("label", "owner", 101, nil, nil)
	if string(a) == string(b) {
		t.Fatalf("KeyBytes did not change with timestamp_created")
	}
}

func TestKeyDigestIsSha256OfKeyBytes(t *testing.T) {
	bytes := KeyBytes("label", "owner", 100, nil, nil)
	want := sha256.Sum256(bytes)
	got := KeyDigest("label", "owner", 100, nil, nil)
	if got != want {
		t.Fatalf("KeyDigest is not SHA-256 of KeyBytes")
	}
	if len(bytes) == 0 {
		t.Fatalf("KeyBytes unexpectedly empty")
	}
}

func TestRecordMetadataBytesCoversRelayAndServiceIds(t *testing.T) {
	a := RecordMetadataBytes("key", "issuer", "holder", 10, nil, "v", []string{"r1"}, []string{"s1"})
	b := RecordMetadataBytes("key", "issuer", "holder", 10, nil, "v", nil, []string{"s1"})
	if string(a) == string(b) {
		t.Fatalf("RecordMetadataBytes ignored relay_id")
	}
	c := RecordMetadataBytes("key", "issuer", "holder", 10, nil, "v", []string{"r1"}, nil)
	if string(a) == string(c) {
		t.Fatalf("RecordMetadataBytes ignored service_id")
	}
}

func TestRecordBytesIncludesIssuerSignatureAndTimestamp(t *testing.T) {
	metadataBytes := RecordMetadataBytes("key", "issuer", "holder", 10, nil, "v", nil, nil)
	a := RecordBytes(metadataBytes, []byte("sig1"), 20)
	b := RecordBytes(metadataBytes, []byte("sig2"), 20)
	if string(a) == string(b) {
		t.Fatalf("RecordBytes ignored issuer_signature")
	}
	c := RecordBytes(metadataBytes, []byte("sig1"), 21)
	if string(a) == string(c) {
		t.Fatalf("RecordBytes ignored timestamp_created")
	}
}

func TestTombstoneBytesDeterministic(t *testing.T) {
	a := TombstoneBytes("key", "issuer", "holder", 10, []byte("sol"))
	b := TombstoneBytes("key", "issuer", "holder", 10, []byte("sol"))
	if string(a) != string(b) {
		t.Fatalf("TombstoneBytes is not deterministic")
	}
	c := TombstoneBytes("key", "issuer", "holder", 11, []byte("sol"))
	if string(a) == string(c) {
		t.Fatalf("TombstoneBytes ignored timestamp_issued")
	}
}
