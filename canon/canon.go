// Package canon implements the bit-exact canonical byte layouts used for
// signing and verifying keys, record metadata, records, and tombstones. Any
// deviation here breaks signature verification against the rest of the
// network, so this package has no knowledge of storage or business rules —
// only encoding.
package canon

import (
	"crypto/sha256"
	"encoding/binary"
)

// putLenPrefixed8 appends a u8 length prefix followed by b. Callers are
// responsible for ensuring len(b) fits in a byte; the fields this is used
// for are all domain-bounded (peer ids, labels, challenge/solution blobs).
func putLenPrefixed8(buf []byte, b []byte) []byte {
	buf = append(buf, byte(len(b)))
	return append(buf, b...)
}

func putU64LE(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// KeyBytes is the signing bytes for a Key:
//
//	len(label):u8 || label
//	len(owner_peer_id):u8 || owner_peer_id
//	timestamp_created:u64 little-endian
//	len(challenge):u8 || challenge
//	len(challenge_type):u8 || challenge_type
func KeyBytes(label, ownerPeerId string, timestampCreated uint64, challenge, challengeType []byte) []byte {
	buf := make([]byte, 0, 2+len(label)+len(ownerPeerId)+8+len(challenge)+len(challengeType))
	buf = putLenPrefixed8(buf, []byte(label))
	buf = putLenPrefixed8(buf, []byte(ownerPeerId))
	buf = putU64LE(buf, timestampCreated)
	buf = putLenPrefixed8(buf, challenge)
	buf = putLenPrefixed8(buf, challengeType)
	return buf
}

// KeyDigest is SHA-256 over KeyBytes — the bytes the owner actually signs.
func KeyDigest(label, ownerPeerId string, timestampCreated uint64, challenge, challengeType []byte) [32]byte {
	return sha256.Sum256(KeyBytes(label, ownerPeerId, timestampCreated, challenge, challengeType))
}

// RecordMetadataBytes is the signing bytes for a RecordMetadata:
//
//	len(key_id):u8 || key_id
//	len(issued_by):u8 || issued_by
//	len(peer_id):u8 || peer_id
//	timestamp_issued:u64 little-endian
//	len(solution):u8 || solution
//	len(value):u8 || value
//	len(relay_id):u64 little-endian
//	  for each id: len(id):u8 || id
//	len(service_id):u64 little-endian
//	  for each id: len(id):u8 || id
func RecordMetadataBytes(keyId, issuedBy, peerId string, timestampIssued uint64, solution []byte, value string, relayId, serviceId []string) []byte {
	buf := make([]byte, 0, 256)
	buf = putLenPrefixed8(buf, []byte(keyId))
	buf = putLenPrefixed8(buf, []byte(issuedBy))
	buf = putLenPrefixed8(buf, []byte(peerId))
	buf = putU64LE(buf, timestampIssued)
	buf = putLenPrefixed8(buf, solution)
	buf = putLenPrefixed8(buf, []byte(value))

	buf = putU64LE(buf, uint64(len(relayId)))
	for _, id := range relayId {
		buf = putLenPrefixed8(buf, []byte(id))
	}

	buf = putU64LE(buf, uint64(len(serviceId)))
	for _, id := range serviceId {
		buf = putLenPrefixed8(buf, []byte(id))
	}

	return buf
}

// RecordMetadataDigest is SHA-256 over RecordMetadataBytes — what the issuer
// signs.
func RecordMetadataDigest(keyId, issuedBy, peerId string, timestampIssued uint64, solution []byte, value string, relayId, serviceId []string) [32]byte {
	return sha256.Sum256(RecordMetadataBytes(keyId, issuedBy, peerId, timestampIssued, solution, value, relayId, serviceId))
}

// RecordBytes is the signing bytes for a Record: the metadata bytes prefixed
// with the issuer signature, length-prefixed as a whole, followed by the
// holder's creation timestamp:
//
//	len(issuer_signature || metadata_bytes):u64 little-endian || issuer_signature || metadata_bytes
//	timestamp_created:u64 little-endian
func RecordBytes(metadataBytes, issuerSignature []byte, timestampCreated uint64) []byte {
	inner := make([]byte, 0, len(issuerSignature)+len(metadataBytes))
	inner = append(inner, issuerSignature...)
	inner = append(inner, metadataBytes...)

	buf := make([]byte, 0, 8+len(inner)+8)
	buf = putU64LE(buf, uint64(len(inner)))
	buf = append(buf, inner...)
	buf = putU64LE(buf, timestampCreated)
	return buf
}

// RecordDigest is SHA-256 over RecordBytes — what the holder signs.
func RecordDigest(metadataBytes, issuerSignature []byte, timestampCreated uint64) [32]byte {
	return sha256.Sum256(RecordBytes(metadataBytes, issuerSignature, timestampCreated))
}

// TombstoneBytes is the signing bytes for a Tombstone:
//
//	len(key_id):u8 || key_id
//	len(issued_by):u8 || issued_by
//	len(peer_id):u8 || peer_id
//	timestamp_issued:u64 little-endian
//	len(solution):u8 || solution
func TombstoneBytes(keyId, issuedBy, peerId string, timestampIssued uint64, solution []byte) []byte {
	buf := make([]byte, 0, 3+len(keyId)+len(issuedBy)+len(peerId)+8+len(solution))
	buf = putLenPrefixed8(buf, []byte(keyId))
	buf = putLenPrefixed8(buf, []byte(issuedBy))
	buf = putLenPrefixed8(buf, []byte(peerId))
	buf = putU64LE(buf, timestampIssued)
	buf = putLenPrefixed8(buf, solution)
	return buf
}

// TombstoneDigest is SHA-256 over TombstoneBytes — what the issuer signs.
func TombstoneDigest(keyId, issuedBy, peerId string, timestampIssued uint64, solution []byte) [32]byte {
	return sha256.Sum256(TombstoneBytes(keyId, issuedBy, peerId, timestampIssued, solution))
}
