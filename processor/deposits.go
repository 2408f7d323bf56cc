package processor

import (
	"fmt"
	"time"

	lapiv2 "github.com/chainsafe/canton-middleware/pkg/canton/lapi/v2"

	"github.com/ChainSafe/canton-middleware-sub001/ledger"
)

// Deposit lifecycle stages. A deposit surfaces on the ledger first as a
// PendingDeposit awaiting relay processing, then as a DepositEvent receipt
// once the tokens were minted.
const (
	DepositPending   = "Pending"
	DepositCompleted = "Completed"
)

// DepositRecord is the canonical view of one observed deposit (EVM to
// Canton transfer).
type DepositRecord struct {
	Offset      int64     `json:"offset"`
	Time        time.Time `json:"time"`
	Amount      string    `json:"amount,omitempty"`
	Recipient   string    `json:"recipient,omitempty"`
	EVMTx       string    `json:"evm_tx,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Lifecycle   string    `json:"lifecycle"`
}

// parseDeposit reads a deposit record out of a classified creation event.
// Missing or mistyped fields stay at their zero values.
func parseDeposit(created *lapiv2.CreatedEvent, offset int64, effectiveAt time.Time) DepositRecord {
	rec := DepositRecord{
		Offset:    offset,
		Time:      effectiveAt,
		Lifecycle: created.TemplateId.EntityName,
	}

	switch created.TemplateId.EntityName {
	case pendingDepositEntity:
		rec.Lifecycle = DepositPending
	case depositEventEntity:
		rec.Lifecycle = DepositCompleted
	}

	if created.CreateArguments != nil {
		for _, field := range created.CreateArguments.Fields {
			switch field.Label {
			case "amount":
				rec.Amount = ledger.ExtractNumeric(field.Value)
			case "recipient", "owner":
				rec.Recipient = ledger.ExtractParty(field.Value)
			case "evmTxHash", "txHash":
				rec.EVMTx = ledger.ExtractText(field.Value)
			case "fingerprint":
				rec.Fingerprint = ledger.ExtractText(field.Value)
			}
		}
	}

	return rec
}

// depositKey builds the correlation key for a deposit observation. Two
// observations describe the same deposit when fingerprint and EVM tx hash
// both agree; with neither present the offset keys the record on its own,
// guaranteeing unrelated anonymous events never collide (and never merge).
func depositKey(rec DepositRecord) string {
	key := rec.Fingerprint + ":" + rec.EVMTx
	if key == ":" {
		key = fmt.Sprintf("offset:%d", rec.Offset)
	}
	return key
}

// depositSet holds at most one DepositRecord per correlation key, in first
// observation order. Local to a single stream pass.
type depositSet struct {
	records map[string]*DepositRecord
	order   []string
}

func newDepositSet() *depositSet {
	return &depositSet{records: make(map[string]*DepositRecord)}
}

// observe folds one deposit observation into the set. An existing record is
// replaced only by a Completed observation or by a strictly later offset, so
// a deposit can finish but never regress. Replacement keeps the record's
// position in the insertion order.
func (s *depositSet) observe(rec DepositRecord) {
	key := depositKey(rec)
	if existing, ok := s.records[key]; ok {
		if rec.Lifecycle == DepositCompleted || rec.Offset > existing.Offset {
			*existing = rec
		}
		return
	}
	stored := rec
	s.records[key] = &stored
	s.order = append(s.order, key)
}

func (s *depositSet) size() int {
	return len(s.order)
}

// collect returns up to limit records in first-observation order.
func (s *depositSet) collect(limit int) []DepositRecord {
	out := make([]DepositRecord, 0, len(s.order))
	for _, key := range s.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, *s.records[key])
	}
	return out
}
