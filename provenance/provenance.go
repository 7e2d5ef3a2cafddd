// Package provenance verifies the per-argument provenance annotations
// ("tetraplets") the ambient execution host attaches to every call. These
// are the only defense against a caller forging a timestamp or a trust-graph
// weight, so every domain operation in service must run its tetraplet
// checks before trusting the corresponding argument.
package provenance

import "github.com/meshregistry/registry/regerrors"

// Tetraplet names the service, function, and peer that produced one
// argument value, as furnished by the host per call.
type Tetraplet struct {
	ServiceId string
	FuncName  string
	PeerId    string
	// Path indexes into a nested argument (e.g. one WeightResult inside an
	// array of them); empty for a top-level argument.
	Path []int
}

// CallTetraplets is the full per-argument annotation list the host attaches
// to one operation invocation, indexed the same way as the operation's
// positional arguments.
type CallTetraplets [][]Tetraplet

const (
	timestampServiceId = "peer"
	timestampFuncName  = "timestamp_sec"

	weightServiceId = "trust-graph"
	weightFuncName  = "get_weight"

	hostRecordServiceId = "registry"
	hostRecordFuncName  = "put_host_record"
)

func argTetraplets(tetraplets CallTetraplets, argIndex int) ([]Tetraplet, error) {
	if argIndex < 0 || argIndex >= len(tetraplets) {
		return nil, regerrors.New(regerrors.InternalError, "tetraplet index %d out of range", argIndex)
	}
	return tetraplets[argIndex], nil
}

// CheckTimestampTetraplet verifies that the timestamp argument at argIndex
// was produced by the local "peer"/"timestamp_sec" oracle, run on host.
func CheckTimestampTetraplet(tetraplets CallTetraplets, argIndex int, localHostPeerId string) error {
	ts, err := argTetraplets(tetraplets, argIndex)
	if err != nil {
		return err
	}
	for _, t := range ts {
		if t.ServiceId == timestampServiceId && t.FuncName == timestampFuncName && t.PeerId == localHostPeerId {
			return nil
		}
	}
	return regerrors.New(regerrors.InvalidTimestampTetraplet, "argument %d not produced by %s.%s on this host", argIndex, timestampServiceId, timestampFuncName)
}

// CheckWeightTetraplet verifies that the weight argument at argIndex (at
// inner index innerIdx when the argument is an array element) was produced
// by the local "trust-graph"/"get_weight" oracle, run on host.
func CheckWeightTetraplet(tetraplets CallTetraplets, argIndex, innerIdx int, localHostPeerId string) error {
	ts, err := argTetraplets(tetraplets, argIndex)
	if err != nil {
		return err
	}
	for _, t := range ts {
		if t.ServiceId == weightServiceId && t.FuncName == weightFuncName && t.PeerId == localHostPeerId && matchesPath(t.Path, innerIdx) {
			return nil
		}
	}
	return regerrors.New(regerrors.InvalidWeightTetraplet, "argument %d (inner %d) not produced by %s.%s on this host", argIndex, innerIdx, weightServiceId, weightFuncName)
}

// CheckHostRecordTetraplet verifies that the host-record argument at
// argIndex was produced by "registry"/"put_host_record" executed by
// holderPeerId — the peer named in the record's peer_id field.
func CheckHostRecordTetraplet(tetraplets CallTetraplets, argIndex int, holderPeerId string) error {
	ts, err := argTetraplets(tetraplets, argIndex)
	if err != nil {
		return err
	}
	for _, t := range ts {
		if t.ServiceId == hostRecordServiceId && t.FuncName == hostRecordFuncName && t.PeerId == holderPeerId {
			return nil
		}
	}
	return regerrors.New(regerrors.InvalidSetHostValueTetraplet, "argument %d not produced by %s.%s executed by %s", argIndex, hostRecordServiceId, hostRecordFuncName, holderPeerId)
}

func matchesPath(path []int, innerIdx int) bool {
	if innerIdx < 0 {
		return true
	}
	if len(path) == 0 {
		return innerIdx == 0
	}
	return path[len(path)-1] == innerIdx
}

// WeightResult mirrors model.WeightResult's shape without importing model,
// to keep provenance dependency-free of the domain model package (it is
// conceptually lower-level: it only knows about oracle results, not what a
// registry record is).
type WeightResult struct {
	Success bool
	Weight  uint32
	PeerId  string
	Error   string
}

// CheckWeightResult verifies that a WeightResult argument actually reports
// success for the expected peer.
func CheckWeightResult(expected WeightResult, expectedPeerId string) error {
	if !expected.Success || expected.PeerId != expectedPeerId {
		return regerrors.New(regerrors.InvalidWeightPeerId, "weight result for %q does not match expected peer %q (success=%v)", expected.PeerId, expectedPeerId, expected.Success)
	}
	return nil
}
