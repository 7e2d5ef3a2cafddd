// Package model defines the authenticated data model of the registry: keys,
// record metadata, holder-countersigned records, and tombstones. Types here
// carry no storage or signing logic beyond what the signature scheme itself
// requires (constructing the bytes to verify); encoding lives in canon,
// verification in identity, and persistence in storage.
package model

// Key is an owner-signed, content-addressed naming record.
type Key struct {
	ID            string // base58(SHA-256(Label || OwnerPeerId))
	Label         string
	OwnerPeerId   string
	TimestampCreated uint64
	Challenge     []byte
	ChallengeType []byte
	Signature     []byte

	// Adjunct fields tracked alongside the key but outside its signed
	// envelope (timestamp_published, weight, timestamp_accessed) live only
	// in storage — see storage's keyRow and keyAccessRow.
}

// RecordMetadata is the issuer-signed half of a record.
type RecordMetadata struct {
	KeyId           string
	IssuedBy        string // issuer peer id
	PeerId          string // holder/host peer id
	TimestampIssued uint64
	Value           string
	RelayId         []string // zero or one entries, per spec
	ServiceId       []string // zero or one entries, per spec
	Solution        []byte
	IssuerSignature []byte
}

// Record is a holder-countersigned record built atop RecordMetadata.
type Record struct {
	Metadata         RecordMetadata
	TimestampCreated uint64
	Signature        []byte

	// Weight is the admitting WeightResult.Weight, persisted alongside the
	// row (see SPEC_FULL.md §11) so get_records can order by it without a
	// second oracle round-trip.
	Weight uint32
}

// Triple returns the storage-unique identity of a record: (key_id, issued_by,
// peer_id).
func (r *Record) Triple() (keyId, issuedBy, peerId string) {
	return r.Metadata.KeyId, r.Metadata.IssuedBy, r.Metadata.PeerId
}

// MergeKey returns the CRDT merge-group identity of a record, shared across
// replicas: (peer_id, issued_by).
func (r *Record) MergeKey() (peerId, issuedBy string) {
	return r.Metadata.PeerId, r.Metadata.IssuedBy
}

// Tombstone is an issuer-signed deletion proof, stored in the same table as
// Record and distinguished by a flag.
type Tombstone struct {
	KeyId           string
	IssuedBy        string
	PeerId          string
	TimestampIssued uint64
	Solution        []byte
	IssuerSignature []byte
}

func (t *Tombstone) Triple() (keyId, issuedBy, peerId string) {
	return t.KeyId, t.IssuedBy, t.PeerId
}

// WeightResult is the oracle-provided outcome of a trust-graph weight
// lookup. Success must be true and PeerId must match the expected peer for
// the result to be accepted — see provenance.CheckWeightResult.
type WeightResult struct {
	Success bool
	Weight  uint32
	PeerId  string
	Error   string
}

// RecordsLimit is the maximum number of non-host, non-tombstoned records
// admitted per key (§3, Invariants on records/tombstones).
const RecordsLimit = 32
