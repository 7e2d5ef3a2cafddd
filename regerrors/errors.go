// Package regerrors defines the closed error taxonomy returned across the
// registry service's host boundary. Every case here is reported verbatim in
// a result envelope's error field so that nodes can diagnose a rejected
// operation against the exact same string a peer would see.
package regerrors

import "fmt"

// Kind is a coarse category for RegistryError, analogous to an ACME problem
// type: callers switch on Kind, not on the formatted message.
type Kind int

const (
	InternalError Kind = iota
	SqliteError

	KeyNotExists
	KeyAlreadyExistsNewerTimestamp
	KeysArgumentEmpty
	InvalidKeyTimestamp
	InvalidKeySignature

	InvalidRecordTimestamp
	InvalidRecordMetadataTimestamp
	RecordAlreadyExpired
	InvalidRecordSignature
	InvalidRecordMetadataSignature
	MissingRecordWeight
	RecordsPublishingError

	InvalidTombstoneTimestamp
	InvalidTombstoneSignature
	TombstonesPublishingError

	ValuesLimitExceeded
	HostValueNotFound
	InvalidSetHostValueResult

	InvalidTimestampTetraplet
	InvalidWeightTetraplet
	InvalidSetHostValueTetraplet
	InvalidWeightPeerId

	PeerIdParseError
	PublicKeyExtractionError
	PublicKeyDecodeError
)

var kindNames = map[Kind]string{
	InternalError:                  "InternalError",
	SqliteError:                    "SqliteError",
	KeyNotExists:                   "KeyNotExists",
	KeyAlreadyExistsNewerTimestamp: "KeyAlreadyExistsNewerTimestamp",
	KeysArgumentEmpty:              "KeysArgumentEmpty",
	InvalidKeyTimestamp:            "InvalidKeyTimestamp",
	InvalidKeySignature:            "InvalidKeySignature",
	InvalidRecordTimestamp:         "InvalidRecordTimestamp",
	InvalidRecordMetadataTimestamp: "InvalidRecordMetadataTimestamp",
	RecordAlreadyExpired:           "RecordAlreadyExpired",
	InvalidRecordSignature:         "InvalidRecordSignature",
	InvalidRecordMetadataSignature: "InvalidRecordMetadataSignature",
	MissingRecordWeight:            "MissingRecordWeight",
	RecordsPublishingError:         "RecordsPublishingError",
	InvalidTombstoneTimestamp:      "InvalidTombstoneTimestamp",
	InvalidTombstoneSignature:      "InvalidTombstoneSignature",
	TombstonesPublishingError:      "TombstonesPublishingError",
	ValuesLimitExceeded:            "ValuesLimitExceeded",
	HostValueNotFound:              "HostValueNotFound",
	InvalidSetHostValueResult:      "InvalidSetHostValueResult",
	InvalidTimestampTetraplet:      "InvalidTimestampTetraplet",
	InvalidWeightTetraplet:         "InvalidWeightTetraplet",
	InvalidSetHostValueTetraplet:   "InvalidSetHostValueTetraplet",
	InvalidWeightPeerId:            "InvalidWeightPeerId",
	PeerIdParseError:               "PeerIdParseError",
	PublicKeyExtractionError:       "PublicKeyExtractionError",
	PublicKeyDecodeError:           "PublicKeyDecodeError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UnknownError"
}

// RegistryError is the concrete error type returned by every package in this
// module. Callers that need to branch on category use Is, not a type switch
// on the underlying message.
type RegistryError struct {
	Kind   Kind
	Detail string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// New builds a RegistryError of the given Kind with a formatted detail.
func New(kind Kind, msg string, args ...interface{}) error {
	return &RegistryError{Kind: kind, Detail: fmt.Sprintf(msg, args...)}
}

// Is reports whether err is a RegistryError of the given Kind.
func Is(err error, kind Kind) bool {
	re, ok := err.(*RegistryError)
	if !ok {
		return false
	}
	return re.Kind == kind
}

// KindOf extracts the Kind of a RegistryError, or InternalError if err is not
// one (or is nil, which should not happen at a call site that checks err
// first).
func KindOf(err error) Kind {
	re, ok := err.(*RegistryError)
	if !ok {
		return InternalError
	}
	return re.Kind
}
