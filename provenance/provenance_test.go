package provenance

import (
	"testing"

	"github.com/meshregistry/registry/regerrors"
)

func tetrapletsFor(argIndex int, t Tetraplet) CallTetraplets {
	ct := make(CallTetraplets, argIndex+1)
	ct[argIndex] = []Tetraplet{t}
	return ct
}

func TestCheckTimestampTetrapletAccepts(t *testing.T) {
	ct := tetrapletsFor(2, Tetraplet{ServiceId: "peer", FuncName: "timestamp_sec", PeerId: "host"})
	if err := CheckTimestampTetraplet(ct, 2, "host"); err != nil {
		t.Fatalf("expected valid timestamp tetraplet to pass: %v", err)
	}
}

func TestCheckTimestampTetrapletRejectsWrongService(t *testing.T) {
	ct := tetrapletsFor(2, Tetraplet{ServiceId: "not-peer", FuncName: "timestamp_sec", PeerId: "host"})
	err := CheckTimestampTetraplet(ct, 2, "host")
	if !regerrors.Is(err, regerrors.InvalidTimestampTetraplet) {
		t.Fatalf("expected InvalidTimestampTetraplet, got %v", err)
	}
}

func TestCheckTimestampTetrapletRejectsWrongHost(t *testing.T) {
	ct := tetrapletsFor(2, Tetraplet{ServiceId: "peer", FuncName: "timestamp_sec", PeerId: "other-host"})
	err := CheckTimestampTetraplet(ct, 2, "host")
	if !regerrors.Is(err, regerrors.InvalidTimestampTetraplet) {
		t.Fatalf("expected InvalidTimestampTetraplet, got %v", err)
	}
}

func TestCheckWeightTetrapletMatchesInnerIndex(t *testing.T) {
	ct := CallTetraplets{nil, {
		{ServiceId: "trust-graph", FuncName: "get_weight", PeerId: "host", Path: []int{2}},
	}}
	if err := CheckWeightTetraplet(ct, 1, 2, "host"); err != nil {
		t.Fatalf("expected matching inner index to pass: %v", err)
	}
	if err := CheckWeightTetraplet(ct, 1, 3, "host"); err == nil {
		t.Fatalf("expected mismatched inner index to fail")
	}
}

func TestCheckHostRecordTetraplet(t *testing.T) {
	ct := tetrapletsFor(0, Tetraplet{ServiceId: "registry", FuncName: "put_host_record", PeerId: "holder-1"})
	if err := CheckHostRecordTetraplet(ct, 0, "holder-1"); err != nil {
		t.Fatalf("expected valid host-record tetraplet to pass: %v", err)
	}
	if err := CheckHostRecordTetraplet(ct, 0, "holder-2"); err == nil {
		t.Fatalf("expected tetraplet for a different holder to fail")
	}
}

func TestCheckWeightResult(t *testing.T) {
	good := WeightResult{Success: true, Weight: 5, PeerId: "p1"}
	if err := CheckWeightResult(good, "p1"); err != nil {
		t.Fatalf("expected matching weight result to pass: %v", err)
	}

	wrongPeer := WeightResult{Success: true, Weight: 5, PeerId: "p2"}
	if err := CheckWeightResult(wrongPeer, "p1"); !regerrors.Is(err, regerrors.InvalidWeightPeerId) {
		t.Fatalf("expected InvalidWeightPeerId for mismatched peer, got %v", err)
	}

	unsuccessful := WeightResult{Success: false, PeerId: "p1"}
	if err := CheckWeightResult(unsuccessful, "p1"); !regerrors.Is(err, regerrors.InvalidWeightPeerId) {
		t.Fatalf("expected InvalidWeightPeerId for unsuccessful result, got %v", err)
	}
}
