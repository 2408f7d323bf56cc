package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	lapiv2 "github.com/chainsafe/canton-middleware/pkg/canton/lapi/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/ChainSafe/canton-middleware-sub001/ledger"
)

// ErrStream marks transport failures on the ledger streams. Callers can
// distinguish them from authentication failures with errors.Is.
var ErrStream = errors.New("ledger stream failed")

// UpdatesClient is the slice of the update service the processor consumes.
type UpdatesClient interface {
	GetUpdates(ctx context.Context, in *lapiv2.GetUpdatesRequest, opts ...grpc.CallOption) (lapiv2.UpdateService_GetUpdatesClient, error)
}

// StateClient is the slice of the state service the processor consumes.
type StateClient interface {
	GetLedgerEnd(ctx context.Context, in *lapiv2.GetLedgerEndRequest, opts ...grpc.CallOption) (*lapiv2.GetLedgerEndResponse, error)
	GetActiveContracts(ctx context.Context, in *lapiv2.GetActiveContractsRequest, opts ...grpc.CallOption) (lapiv2.StateService_GetActiveContractsClient, error)
}

// Metrics tracks cumulative processor activity across reconciliation runs.
type Metrics struct {
	RunsStarted         int64         `json:"runs_started"`
	RunsCompleted       int64         `json:"runs_completed"`
	RunsFailed          int64         `json:"runs_failed"`
	EventsProcessed     int64         `json:"events_processed"`
	DepositsCorrelated  int64         `json:"deposits_correlated"`
	WithdrawalsMatched  int64         `json:"withdrawals_matched"`
	HoldingsObserved    int64         `json:"holdings_observed"`
	LastLedgerEnd       int64         `json:"last_ledger_end"`
	LastRunDuration     time.Duration `json:"last_run_duration_ns"`
	LastRunTime         time.Time     `json:"last_run_time"`
}

// BridgeProcessor drives reconciliation passes over one party's view of the
// ledger. Each pass owns its correlation state exclusively; only the metrics
// are shared across concurrent passes.
type BridgeProcessor struct {
	state   StateClient
	updates UpdatesClient
	party   string
	logger  *zap.Logger

	mu      sync.RWMutex
	metrics Metrics
}

// NewBridgeProcessor creates a processor reading the ledger as party.
func NewBridgeProcessor(state StateClient, updates UpdatesClient, party string, logger *zap.Logger) *BridgeProcessor {
	return &BridgeProcessor{
		state:   state,
		updates: updates,
		party:   party,
		logger:  logger,
	}
}

// Party returns the party whose ledger view is reconciled.
func (p *BridgeProcessor) Party() string {
	return p.party
}

// LedgerEnd returns the participant's current ledger end offset.
func (p *BridgeProcessor) LedgerEnd(ctx context.Context) (int64, error) {
	end, err := ledger.End(ctx, p.state)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStream, err)
	}
	p.mu.Lock()
	p.metrics.LastLedgerEnd = end
	p.mu.Unlock()
	return end, nil
}

// ActivityRequest bounds one reconciliation pass.
type ActivityRequest struct {
	// BeginExclusive and EndInclusive delimit the offset range to stream.
	BeginExclusive int64
	EndInclusive   int64
	// Limit caps each output collection independently; the stream is still
	// drained to EndInclusive after a collection fills up.
	Limit int
	// CaptureFields records a decoded field dump for every classified event,
	// for the debug surface.
	CaptureFields bool
}

// ActivityResult carries the correlated output of one pass. Both record
// slices are in first-observation order, not sorted by offset or time.
type ActivityResult struct {
	Deposits    []DepositRecord
	Withdrawals []WithdrawalRecord
	// TemplateCounts counts every created contract seen in the range by
	// "Module.Entity", including templates the classifiers ignore.
	TemplateCounts map[string]int
	// EventsSeen counts the creation events fed through the classifiers.
	EventsSeen int64
	// Truncated is set when the caller's deadline cut the stream short and
	// the collections cover only a prefix of the requested range.
	Truncated bool
	// FieldDumps holds the decoded field dumps of the classified events, in
	// stream order. Empty unless the request set CaptureFields.
	FieldDumps []EventDump
}

// EventDump is the decoded field dump of one classified creation event.
type EventDump struct {
	Offset     int64             `json:"offset"`
	Template   string            `json:"template"`
	ContractID string            `json:"contract_id"`
	Fields     map[string]string `json:"fields"`
}

// CollectActivity runs one pass over the update stream, feeding every
// creation event through the classifiers into the deposit and withdrawal
// correlators. The pass ends at the stream's end offset, or early with a
// partial result when ctx expires first. Any other stream failure aborts the
// pass; no partial result is returned then.
func (p *BridgeProcessor) CollectActivity(ctx context.Context, req ActivityRequest) (*ActivityResult, error) {
	p.runStarted()

	end := req.EndInclusive
	stream, err := p.updates.GetUpdates(ctx, &lapiv2.GetUpdatesRequest{
		BeginExclusive: req.BeginExclusive,
		EndInclusive:   &end,
		UpdateFormat: &lapiv2.UpdateFormat{
			IncludeTransactions: &lapiv2.TransactionFormat{
				EventFormat:      wildcardEventFormat(p.party),
				TransactionShape: lapiv2.TransactionShape_TRANSACTION_SHAPE_ACS_DELTA,
			},
		},
	})
	if err != nil {
		p.runFailed()
		return nil, fmt.Errorf("%w: failed to open update stream: %v", ErrStream, err)
	}

	started := time.Now()
	deposits := newDepositSet()
	withdrawals := newWithdrawalSet()
	templateCounts := make(map[string]int)
	result := &ActivityResult{}
	var events int64

	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				// Deadline reached mid stream: partial success, not failure.
				result.Truncated = true
				p.logger.Warn("update stream cut short by deadline",
					zap.Int64("events_seen", events),
					zap.Int64("begin_exclusive", req.BeginExclusive),
					zap.Int64("end_inclusive", req.EndInclusive))
				break
			}
			p.runFailed()
			return nil, fmt.Errorf("%w: update stream receive: %v", ErrStream, err)
		}

		tx := msg.GetTransaction()
		if tx == nil {
			continue
		}
		var effectiveAt time.Time
		if tx.EffectiveAt != nil {
			effectiveAt = tx.EffectiveAt.AsTime()
		}

		for _, event := range tx.Events {
			created := event.GetCreated()
			if created == nil {
				continue
			}
			templateID := created.TemplateId
			if templateID == nil {
				continue
			}
			events++
			templateCounts[templateID.ModuleName+"."+templateID.EntityName]++

			isDeposit := IsDepositTemplate(templateID)
			isWithdrawal := IsWithdrawalTemplate(templateID)
			if isDeposit {
				deposits.observe(parseDeposit(created, tx.Offset, effectiveAt))
			}
			if isWithdrawal {
				withdrawals.observe(parseWithdrawal(created, tx.Offset, effectiveAt))
			}
			if req.CaptureFields && (isDeposit || isWithdrawal) {
				result.FieldDumps = append(result.FieldDumps, EventDump{
					Offset:     tx.Offset,
					Template:   templateID.ModuleName + "." + templateID.EntityName,
					ContractID: created.ContractId,
					Fields:     dumpFields(created),
				})
			}
		}
	}

	result.Deposits = deposits.collect(req.Limit)
	result.Withdrawals = withdrawals.collect(req.Limit)
	result.TemplateCounts = templateCounts
	result.EventsSeen = events

	p.runCompleted(events, int64(deposits.size()), int64(withdrawals.size()), time.Since(started))
	p.logger.Info("reconciliation pass complete",
		zap.Int64("events_seen", events),
		zap.Int("deposits", deposits.size()),
		zap.Int("withdrawals", withdrawals.size()),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("elapsed", time.Since(started)))

	return result, nil
}

// GetMetrics returns a copy of the cumulative processor metrics.
func (p *BridgeProcessor) GetMetrics() Metrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metrics
}

func (p *BridgeProcessor) runStarted() {
	p.mu.Lock()
	p.metrics.RunsStarted++
	p.mu.Unlock()
}

func (p *BridgeProcessor) runFailed() {
	p.mu.Lock()
	p.metrics.RunsFailed++
	p.mu.Unlock()
}

func (p *BridgeProcessor) runCompleted(events, deposits, withdrawals int64, elapsed time.Duration) {
	p.mu.Lock()
	p.metrics.RunsCompleted++
	p.metrics.EventsProcessed += events
	p.metrics.DepositsCorrelated += deposits
	p.metrics.WithdrawalsMatched += withdrawals
	p.metrics.LastRunDuration = elapsed
	p.metrics.LastRunTime = time.Now()
	p.mu.Unlock()
}

// dumpFields renders every field of a creation event for the debug payload.
// Record-valued fields are expanded one level so meta records show their
// entries.
func dumpFields(created *lapiv2.CreatedEvent) map[string]string {
	fields := make(map[string]string)
	if created.CreateArguments == nil {
		return fields
	}
	for _, field := range created.CreateArguments.Fields {
		fields[field.Label] = describeDumpValue(field.Value)
	}
	return fields
}

func describeDumpValue(v *lapiv2.Value) string {
	if v != nil {
		if rec, ok := v.Sum.(*lapiv2.Value_Record); ok {
			parts := make([]string, 0, len(rec.Record.Fields))
			for _, sub := range rec.Record.Fields {
				parts = append(parts, sub.Label+"="+ledger.DescribeValue(sub.Value))
			}
			return "{" + strings.Join(parts, ", ") + "}"
		}
	}
	return ledger.DescribeValue(v)
}

// wildcardEventFormat requests every template visible to party, with verbose
// field labels so record fields arrive labeled for decoding.
func wildcardEventFormat(party string) *lapiv2.EventFormat {
	return &lapiv2.EventFormat{
		FiltersByParty: map[string]*lapiv2.Filters{
			party: {
				Cumulative: []*lapiv2.CumulativeFilter{
					{
						IdentifierFilter: &lapiv2.CumulativeFilter_WildcardFilter{
							WildcardFilter: &lapiv2.WildcardFilter{},
						},
					},
				},
			},
		},
		Verbose: true,
	}
}
