package processor

import (
	"testing"
	"time"
)

func TestStatusRank(t *testing.T) {
	tests := []struct {
		status string
		want   int
	}{
		{StatusCompleted, 3},
		{StatusPending, 2},
		{StatusRequest, 1},
		{"Rejected", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := statusRank(tt.status); got != tt.want {
			t.Errorf("statusRank(%q) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestParseWithdrawalDefaults(t *testing.T) {
	tests := []struct {
		name   string
		entity string
		want   string
	}{
		{"request opens lifecycle", "WithdrawalRequest", StatusRequest},
		{"event defaults to pending", "WithdrawalEvent", StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := createdEventWithCID("Bridge.Contracts", tt.entity, "cid-1", nil)
			rec := parseWithdrawal(created, 50, time.Time{})
			if rec.RawStatus != tt.want {
				t.Errorf("RawStatus = %q, want %q", rec.RawStatus, tt.want)
			}
			if rec.RequestCID != "cid-1" {
				t.Errorf("RequestCID = %q, want cid-1", rec.RequestCID)
			}
		})
	}
}

func TestParseWithdrawalFields(t *testing.T) {
	created := createdEventWithCID("Bridge.Contracts", "WithdrawalEvent", "cid-2", []recordField{
		{"amount", numericValue("7.25")},
		{"evmDestination", textValue("0xdest")},
		{"evmTxHash", textValue("0xbb")},
		{"fingerprint", textValue("FP-9")},
		{"status", variantValue("Completed")},
		{"holdingCid", contractIDValue("hold-1")},
	})

	rec := parseWithdrawal(created, 60, time.Time{})
	if rec.Amount != "7.25" {
		t.Errorf("Amount = %q, want 7.25", rec.Amount)
	}
	if rec.EVMDest != "0xdest" {
		t.Errorf("EVMDest = %q, want 0xdest", rec.EVMDest)
	}
	if rec.EVMTx != "0xbb" {
		t.Errorf("EVMTx = %q, want 0xbb", rec.EVMTx)
	}
	if rec.RawStatus != StatusCompleted {
		t.Errorf("RawStatus = %q, want Completed via status variant", rec.RawStatus)
	}
	if rec.HoldingCid != "hold-1" {
		t.Errorf("HoldingCid = %q, want hold-1", rec.HoldingCid)
	}
}

func TestParseWithdrawalAlternateDestinationLabel(t *testing.T) {
	created := createdEventWithCID("Bridge.Contracts", "WithdrawalRequest", "cid-3", []recordField{
		{"destination", textValue("0xalt")},
	})
	rec := parseWithdrawal(created, 1, time.Time{})
	if rec.EVMDest != "0xalt" {
		t.Errorf("EVMDest = %q, want destination label honored", rec.EVMDest)
	}
}

func TestParseWithdrawalUnknownStatusVariantKeepsDefault(t *testing.T) {
	created := createdEventWithCID("Bridge.Contracts", "WithdrawalEvent", "cid-4", []recordField{
		{"status", variantValue("Rejected")},
	})
	rec := parseWithdrawal(created, 1, time.Time{})
	if rec.RawStatus != StatusPending {
		t.Errorf("RawStatus = %q, want entity default Pending for unknown variant", rec.RawStatus)
	}
}

func TestWithdrawalResolveKeyHoldingReference(t *testing.T) {
	s := newWithdrawalSet()
	key := s.resolveKey(WithdrawalRecord{Offset: 10, HoldingCid: "hold-1", RequestCID: "cid-1"})
	if key != "holding:hold-1" {
		t.Errorf("resolveKey() = %q, want holding:hold-1", key)
	}
}

func TestWithdrawalResolveKeyStandalone(t *testing.T) {
	s := newWithdrawalSet()
	key := s.resolveKey(WithdrawalRecord{Offset: 10, RequestCID: "cid-1"})
	if key != "cid:cid-1" {
		t.Errorf("resolveKey() = %q, want cid:cid-1", key)
	}
}

func TestWithdrawalProximityWindowBounds(t *testing.T) {
	tests := []struct {
		name        string
		eventOffset int64
		wantMerged  bool
	}{
		{"equal offset does not merge", 200, false},
		{"one past merges", 201, true},
		{"window edge merges", 210, true},
		{"past window stands alone", 211, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newWithdrawalSet()
			s.observe(WithdrawalRecord{Offset: 200, RequestCID: "req-1", HoldingCid: "hold-1", RawStatus: StatusRequest})
			s.observe(WithdrawalRecord{Offset: tt.eventOffset, RequestCID: "evt-1", RawStatus: StatusPending})

			wantSize := 2
			if tt.wantMerged {
				wantSize = 1
			}
			if s.size() != wantSize {
				t.Errorf("size() = %d, want %d", s.size(), wantSize)
			}
		})
	}
}

func TestWithdrawalProximityPrefersEarliestCandidate(t *testing.T) {
	// Two open requests both within range of the orphan event; the one with
	// the smaller stored offset absorbs it, regardless of map iteration.
	s := newWithdrawalSet()
	s.observe(WithdrawalRecord{Offset: 100, RequestCID: "req-a", HoldingCid: "hold-a", RawStatus: StatusRequest})
	s.observe(WithdrawalRecord{Offset: 105, RequestCID: "req-b", HoldingCid: "hold-b", RawStatus: StatusRequest})
	s.observe(WithdrawalRecord{Offset: 107, RequestCID: "evt-1", RawStatus: StatusPending})

	if s.size() != 2 {
		t.Fatalf("size() = %d, want 2", s.size())
	}
	recs := s.collect(0)
	if recs[0].RawStatus != StatusPending || recs[0].HoldingCid != "hold-a" {
		t.Errorf("first record = %s holding %s, want Pending absorbed into hold-a", recs[0].RawStatus, recs[0].HoldingCid)
	}
	if recs[1].RawStatus != StatusRequest || recs[1].HoldingCid != "hold-b" {
		t.Errorf("second record = %s holding %s, want untouched hold-b request", recs[1].RawStatus, recs[1].HoldingCid)
	}
}

func TestWithdrawalMergeIsMonotonic(t *testing.T) {
	s := newWithdrawalSet()
	s.observe(WithdrawalRecord{Offset: 200, RequestCID: "req-1", HoldingCid: "hold-1", RawStatus: StatusRequest})
	s.observe(WithdrawalRecord{Offset: 203, RequestCID: "evt-1", RawStatus: StatusPending})
	s.observe(WithdrawalRecord{Offset: 207, RequestCID: "evt-2", RawStatus: StatusCompleted, EVMTx: "0xbb"})
	// Replayed lower status after completion must not regress the record.
	s.observe(WithdrawalRecord{Offset: 209, RequestCID: "evt-3", RawStatus: StatusPending})

	if s.size() != 1 {
		t.Fatalf("size() = %d, want 1", s.size())
	}
	got := s.collect(0)[0]
	if got.RawStatus != StatusCompleted {
		t.Errorf("RawStatus = %q, want Completed", got.RawStatus)
	}
	if got.Offset != 207 {
		t.Errorf("Offset = %d, want 207", got.Offset)
	}
	if got.EVMTx != "0xbb" {
		t.Errorf("EVMTx = %q, want 0xbb", got.EVMTx)
	}
	if got.HoldingCid != "hold-1" {
		t.Errorf("HoldingCid = %q, want hold-1 carried through the merges", got.HoldingCid)
	}
}

func TestWithdrawalIdempotentReplay(t *testing.T) {
	s := newWithdrawalSet()
	rec := WithdrawalRecord{Offset: 300, RequestCID: "req-1", HoldingCid: "hold-1", RawStatus: StatusPending, Amount: "25"}
	s.observe(rec)
	s.observe(rec)

	if s.size() != 1 {
		t.Fatalf("size() = %d, want 1", s.size())
	}
	if got := s.collect(0)[0]; got != rec {
		t.Errorf("collect()[0] = %+v, want the original record unchanged", got)
	}
}

func TestWithdrawalEqualRankDiscarded(t *testing.T) {
	s := newWithdrawalSet()
	s.observe(WithdrawalRecord{Offset: 100, RequestCID: "req-1", HoldingCid: "hold-1", RawStatus: StatusPending, Amount: "first"})
	s.observe(WithdrawalRecord{Offset: 104, RequestCID: "evt-1", RawStatus: StatusPending, Amount: "second"})

	got := s.collect(0)[0]
	if got.Amount != "first" || got.Offset != 100 {
		t.Errorf("got amount %q offset %d, want the first Pending kept", got.Amount, got.Offset)
	}
}

func TestWithdrawalExplicitHoldingUpdatesSameRecord(t *testing.T) {
	// A status event that carries its own holding reference routes straight
	// to the request's record without proximity.
	s := newWithdrawalSet()
	s.observe(WithdrawalRecord{Offset: 100, RequestCID: "req-1", HoldingCid: "hold-1", RawStatus: StatusRequest})
	s.observe(WithdrawalRecord{Offset: 500, RequestCID: "evt-1", HoldingCid: "hold-1", RawStatus: StatusCompleted})

	if s.size() != 1 {
		t.Fatalf("size() = %d, want 1", s.size())
	}
	if got := s.collect(0)[0]; got.RawStatus != StatusCompleted {
		t.Errorf("RawStatus = %q, want Completed", got.RawStatus)
	}
}

func TestWithdrawalCollectOrderAndLimit(t *testing.T) {
	s := newWithdrawalSet()
	s.observe(WithdrawalRecord{Offset: 10, RequestCID: "a", HoldingCid: "ha", RawStatus: StatusRequest})
	s.observe(WithdrawalRecord{Offset: 40, RequestCID: "b", HoldingCid: "hb", RawStatus: StatusRequest})
	s.observe(WithdrawalRecord{Offset: 70, RequestCID: "c", HoldingCid: "hc", RawStatus: StatusRequest})

	limited := s.collect(2)
	if len(limited) != 2 {
		t.Fatalf("collect(2) returned %d records, want 2", len(limited))
	}
	if limited[0].RequestCID != "a" || limited[1].RequestCID != "b" {
		t.Errorf("order = %s,%s, want a,b", limited[0].RequestCID, limited[1].RequestCID)
	}
}
