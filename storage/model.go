package storage

import "github.com/meshregistry/registry/model"

// keyRow is the KEYS table row shape: the signed Key envelope plus the two
// adjunct fields (timestamp_published, weight) that ride alongside it but
// are not part of what the owner signs.
type keyRow struct {
	ID               string `db:"id"`
	Label            string `db:"label"`
	OwnerPeerId      string `db:"owner_peer_id"`
	TimestampCreated int64  `db:"timestamp_created"`
	Challenge        []byte `db:"challenge"`
	ChallengeType    []byte `db:"challenge_type"`
	Signature        []byte `db:"signature"`
	TimestampPublished int64 `db:"timestamp_published"`
	Weight           int64  `db:"weight"`
}

// keyAccessRow is the KEY_ACCESS table row: split from KEYS so access-time
// touches never race with an ownership update (§4.4).
type keyAccessRow struct {
	ID               string `db:"id"`
	TimestampAccessed int64 `db:"timestamp_accessed"`
}

// recordRow is the RECORDS table row. Tombstones are stored in the same
// table, distinguished by IsTombstoned, with holder fields left zero.
type recordRow struct {
	KeyId           string `db:"key_id"`
	IssuedBy        string `db:"issued_by"`
	PeerId          string `db:"peer_id"`
	TimestampIssued int64  `db:"timestamp_issued"`
	Value           string `db:"value"`
	RelayId         string `db:"relay_id"`   // JSON-encoded []string
	ServiceId       string `db:"service_id"` // JSON-encoded []string
	Solution        []byte `db:"solution"`
	IssuerSignature []byte `db:"issuer_signature"`

	TimestampCreated int64  `db:"timestamp_created"`
	HolderSignature  []byte `db:"holder_signature"`

	Weight       int64 `db:"weight"`
	IsTombstoned bool  `db:"is_tombstoned"`
}

func recordToRow(r *model.Record) (*recordRow, error) {
	relay, err := marshalIds(r.Metadata.RelayId)
	if err != nil {
		return nil, err
	}
	service, err := marshalIds(r.Metadata.ServiceId)
	if err != nil {
		return nil, err
	}
	return &recordRow{
		KeyId:            r.Metadata.KeyId,
		IssuedBy:         r.Metadata.IssuedBy,
		PeerId:           r.Metadata.PeerId,
		TimestampIssued:  int64(r.Metadata.TimestampIssued),
		Value:            r.Metadata.Value,
		RelayId:          relay,
		ServiceId:        service,
		Solution:         r.Metadata.Solution,
		IssuerSignature:  r.Metadata.IssuerSignature,
		TimestampCreated: int64(r.TimestampCreated),
		HolderSignature:  r.Signature,
		Weight:           int64(r.Weight),
		IsTombstoned:     false,
	}, nil
}

func rowToRecord(row *recordRow) (*model.Record, error) {
	relay, err := unmarshalIds(row.RelayId)
	if err != nil {
		return nil, err
	}
	service, err := unmarshalIds(row.ServiceId)
	if err != nil {
		return nil, err
	}
	return &model.Record{
		Metadata: model.RecordMetadata{
			KeyId:           row.KeyId,
			IssuedBy:        row.IssuedBy,
			PeerId:          row.PeerId,
			TimestampIssued: uint64(row.TimestampIssued),
			Value:           row.Value,
			RelayId:         relay,
			ServiceId:       service,
			Solution:        row.Solution,
			IssuerSignature: row.IssuerSignature,
		},
		TimestampCreated: uint64(row.TimestampCreated),
		Signature:        row.HolderSignature,
		Weight:           uint32(row.Weight),
	}, nil
}

func tombstoneToRow(t *model.Tombstone) *recordRow {
	return &recordRow{
		KeyId:           t.KeyId,
		IssuedBy:        t.IssuedBy,
		PeerId:          t.PeerId,
		TimestampIssued: int64(t.TimestampIssued),
		Solution:        t.Solution,
		IssuerSignature: t.IssuerSignature,
		IsTombstoned:    true,
	}
}

func rowToTombstone(row *recordRow) *model.Tombstone {
	return &model.Tombstone{
		KeyId:           row.KeyId,
		IssuedBy:        row.IssuedBy,
		PeerId:          row.PeerId,
		TimestampIssued: uint64(row.TimestampIssued),
		Solution:        row.Solution,
		IssuerSignature: row.IssuerSignature,
	}
}

func keyToRow(k *model.Key) *keyRow {
	return &keyRow{
		ID:               k.ID,
		Label:            k.Label,
		OwnerPeerId:      k.OwnerPeerId,
		TimestampCreated: int64(k.TimestampCreated),
		Challenge:        k.Challenge,
		ChallengeType:    k.ChallengeType,
		Signature:        k.Signature,
	}
}

func rowToKey(row *keyRow) *model.Key {
	return &model.Key{
		ID:               row.ID,
		Label:            row.Label,
		OwnerPeerId:       row.OwnerPeerId,
		TimestampCreated: uint64(row.TimestampCreated),
		Challenge:        row.Challenge,
		ChallengeType:    row.ChallengeType,
		Signature:        row.Signature,
	}
}
