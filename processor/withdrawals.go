package processor

import (
	"strings"
	"time"

	lapiv2 "github.com/chainsafe/canton-middleware/pkg/canton/lapi/v2"

	"github.com/ChainSafe/canton-middleware-sub001/ledger"
)

// Withdrawal statuses in lifecycle order. A WithdrawalRequest opens the
// lifecycle; WithdrawalEvent contracts carry a status variant that moves it
// to Pending and finally Completed once the EVM side released funds.
const (
	StatusRequest   = "Request"
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
)

// statusRank orders withdrawal statuses. Merges only ever move a record to a
// strictly higher rank.
func statusRank(status string) int {
	switch status {
	case StatusCompleted:
		return 3
	case StatusPending:
		return 2
	case StatusRequest:
		return 1
	default:
		return 0
	}
}

// WithdrawalRecord is the canonical view of one observed withdrawal (Canton
// to EVM transfer), merged from its request and status-update events.
type WithdrawalRecord struct {
	Offset      int64     `json:"offset"`
	Time        time.Time `json:"time"`
	Amount      string    `json:"amount,omitempty"`
	EVMDest     string    `json:"evm_destination,omitempty"`
	EVMTx       string    `json:"evm_tx,omitempty"`
	RequestCID  string    `json:"request_cid,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	HoldingCid  string    `json:"holding_cid,omitempty"`
	RawStatus   string    `json:"raw_status"`
}

// parseWithdrawal reads a withdrawal record out of a classified creation
// event. The entity name sets the default status; an explicit status variant
// field overrides it. Missing or mistyped fields stay at their zero values.
func parseWithdrawal(created *lapiv2.CreatedEvent, offset int64, effectiveAt time.Time) WithdrawalRecord {
	rec := WithdrawalRecord{
		Offset:     offset,
		Time:       effectiveAt,
		RequestCID: created.ContractId,
	}

	switch created.TemplateId.EntityName {
	case withdrawalRequestEntity:
		rec.RawStatus = StatusRequest
	case withdrawalEventEntity:
		rec.RawStatus = StatusPending
	}

	if created.CreateArguments != nil {
		for _, field := range created.CreateArguments.Fields {
			switch field.Label {
			case "amount":
				rec.Amount = ledger.ExtractNumeric(field.Value)
			case "evmDestination", "destination":
				rec.EVMDest = ledger.ExtractText(field.Value)
			case "evmTxHash":
				rec.EVMTx = ledger.ExtractText(field.Value)
			case "fingerprint":
				rec.Fingerprint = ledger.ExtractText(field.Value)
			case "status":
				switch ledger.ExtractVariantConstructor(field.Value) {
				case StatusCompleted:
					rec.RawStatus = StatusCompleted
				case StatusPending:
					rec.RawStatus = StatusPending
				}
			case "holdingCid":
				rec.HoldingCid = ledger.ExtractContractID(field.Value)
			}
		}
	}

	return rec
}

// proximityWindow is how many offsets a status-update event may trail the
// request it belongs to. Update transactions land within a handful of
// offsets of their request on the bridge workflows this window was sized on.
const proximityWindow = 10

const holdingKeyPrefix = "holding:"

// withdrawalSet holds at most one WithdrawalRecord per correlated
// withdrawal, in first observation order. Local to a single stream pass.
type withdrawalSet struct {
	records map[string]*WithdrawalRecord
	order   []string
}

func newWithdrawalSet() *withdrawalSet {
	return &withdrawalSet{records: make(map[string]*WithdrawalRecord)}
}

// resolveKey picks the correlation key for a new observation. An explicit
// holding reference keys the withdrawal outright. Without one, the
// observation folds into a holding-keyed entry it trails by at most
// proximityWindow offsets; the ledger omits a back-reference from update
// events to their request, so proximity is the only available signal. With
// several candidates in range, the one with the smallest offset wins and
// equal offsets fall back to first observation order, keeping the fold
// deterministic. Otherwise the event stands alone under its own contract ID.
func (s *withdrawalSet) resolveKey(rec WithdrawalRecord) string {
	if rec.HoldingCid != "" {
		return holdingKeyPrefix + rec.HoldingCid
	}

	var bestKey string
	var bestOffset int64
	for _, key := range s.order {
		if !strings.HasPrefix(key, holdingKeyPrefix) {
			continue
		}
		existing := s.records[key]
		if rec.Offset > existing.Offset && rec.Offset <= existing.Offset+proximityWindow {
			if bestKey == "" || existing.Offset < bestOffset {
				bestKey = key
				bestOffset = existing.Offset
			}
		}
	}
	if bestKey != "" {
		return bestKey
	}

	return "cid:" + rec.RequestCID
}

// observe folds one withdrawal observation into the set. A record is
// replaced only when the new observation carries a strictly higher status
// rank; the stored holding reference is carried forward when the newer
// observation omits it. Equal or lower ranked observations are discarded.
func (s *withdrawalSet) observe(rec WithdrawalRecord) {
	key := s.resolveKey(rec)
	if existing, ok := s.records[key]; ok {
		if statusRank(rec.RawStatus) > statusRank(existing.RawStatus) {
			if existing.HoldingCid != "" && rec.HoldingCid == "" {
				rec.HoldingCid = existing.HoldingCid
			}
			*existing = rec
		}
		return
	}
	stored := rec
	s.records[key] = &stored
	s.order = append(s.order, key)
}

func (s *withdrawalSet) size() int {
	return len(s.order)
}

// collect returns up to limit records in first-observation order.
func (s *withdrawalSet) collect(limit int) []WithdrawalRecord {
	out := make([]WithdrawalRecord, 0, len(s.order))
	for _, key := range s.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, *s.records[key])
	}
	return out
}
