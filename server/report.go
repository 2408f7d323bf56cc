package server

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ChainSafe/canton-middleware-sub001/ledger"
	"github.com/ChainSafe/canton-middleware-sub001/processor"
)

// tokenSymbol is the display unit for bridge amounts.
const tokenSymbol = "PROMPT"

// DepositView is a DepositRecord with its display status attached.
type DepositView struct {
	processor.DepositRecord
	Status string `json:"status"`
}

// WithdrawalView is a WithdrawalRecord with its display status attached.
type WithdrawalView struct {
	processor.WithdrawalRecord
	Status string `json:"status"`
}

// ActivitySummary totals one reconciliation pass. Amounts are decimal
// strings summed with exact arithmetic; unparseable amounts are skipped.
type ActivitySummary struct {
	DepositCount    int    `json:"deposit_count"`
	WithdrawalCount int    `json:"withdrawal_count"`
	HoldingCount    int    `json:"holding_count"`
	TotalDeposited  string `json:"total_deposited"`
	TotalWithdrawn  string `json:"total_withdrawn"`
	TotalHeld       string `json:"total_held"`
}

// ActivityResponse is the full payload of one activity request.
type ActivityResponse struct {
	RunID               string                   `json:"run_id"`
	Network             string                   `json:"network"`
	Party               string                   `json:"party"`
	LedgerOffset        int64                    `json:"ledger_offset"`
	JWTSubject          string                   `json:"jwt_subject,omitempty"`
	GeneratedAt         time.Time                `json:"generated_at"`
	ElapsedMS           int64                    `json:"elapsed_ms"`
	LedgerEmpty         bool                     `json:"ledger_empty,omitempty"`
	TruncatedByDeadline bool                     `json:"truncated_by_deadline,omitempty"`
	Deposits            []DepositView            `json:"deposits"`
	Withdrawals         []WithdrawalView         `json:"withdrawals"`
	Holdings            []processor.HoldingInfo  `json:"holdings"`
	Summary             ActivitySummary          `json:"summary"`
	TemplateCounts      map[string]int           `json:"template_counts,omitempty"`
	EventDumps          []processor.EventDump    `json:"event_dumps,omitempty"`
}

// HoldingsResponse is the snapshot-only payload for /api/v1/holdings.
type HoldingsResponse struct {
	Network      string                  `json:"network"`
	Party        string                  `json:"party"`
	LedgerOffset int64                   `json:"ledger_offset"`
	GeneratedAt  time.Time               `json:"generated_at"`
	Holdings     []processor.HoldingInfo `json:"holdings"`
	HoldingCount int                     `json:"holding_count"`
	TotalHeld    string                  `json:"total_held"`
}

// depositStatusLabel maps a deposit lifecycle stage to its report wording.
func depositStatusLabel(lifecycle string) string {
	switch lifecycle {
	case processor.DepositPending:
		return "Pending → awaiting processing"
	case processor.DepositCompleted:
		return "Completed → minted"
	default:
		return lifecycle
	}
}

// withdrawalStatusLabel maps a withdrawal status to its report wording.
func withdrawalStatusLabel(rawStatus string) string {
	switch rawStatus {
	case processor.StatusRequest:
		return "Requested → awaiting processing"
	case processor.StatusPending:
		return "Ready → pending EVM release"
	case processor.StatusCompleted:
		return "Completed → EVM released"
	default:
		return rawStatus
	}
}

func depositViews(records []processor.DepositRecord) []DepositView {
	views := make([]DepositView, 0, len(records))
	for _, rec := range records {
		views = append(views, DepositView{DepositRecord: rec, Status: depositStatusLabel(rec.Lifecycle)})
	}
	return views
}

func withdrawalViews(records []processor.WithdrawalRecord) []WithdrawalView {
	views := make([]WithdrawalView, 0, len(records))
	for _, rec := range records {
		views = append(views, WithdrawalView{WithdrawalRecord: rec, Status: withdrawalStatusLabel(rec.RawStatus)})
	}
	return views
}

// buildSummary computes the counts and exact-decimal totals of one pass.
func buildSummary(deposits []DepositView, withdrawals []WithdrawalView, holdings []processor.HoldingInfo) ActivitySummary {
	depositTotal := decimal.Zero
	for _, d := range deposits {
		if amount, err := decimal.NewFromString(d.Amount); err == nil {
			depositTotal = depositTotal.Add(amount)
		}
	}
	withdrawalTotal := decimal.Zero
	for _, w := range withdrawals {
		if amount, err := decimal.NewFromString(w.Amount); err == nil {
			withdrawalTotal = withdrawalTotal.Add(amount)
		}
	}
	holdingTotal := decimal.Zero
	for _, h := range holdings {
		if amount, err := decimal.NewFromString(h.Amount); err == nil {
			holdingTotal = holdingTotal.Add(amount)
		}
	}

	return ActivitySummary{
		DepositCount:    len(deposits),
		WithdrawalCount: len(withdrawals),
		HoldingCount:    len(holdings),
		TotalDeposited:  depositTotal.String(),
		TotalWithdrawn:  withdrawalTotal.String(),
		TotalHeld:       holdingTotal.String(),
	}
}

// writeTextReport renders the demo-friendly fixed-width report.
func writeTextReport(w io.Writer, resp *ActivityResponse) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "======================================================================")
	fmt.Fprintln(w, "CANTON BRIDGE ACTIVITY REPORT")
	fmt.Fprintln(w, "======================================================================")
	fmt.Fprintf(w, "Network: %s\n", resp.Network)
	fmt.Fprintf(w, "Party:   %s\n", ledger.TruncateParty(resp.Party))
	fmt.Fprintf(w, "Time:    %s\n", resp.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Ledger:  Offset %d\n", resp.LedgerOffset)
	if resp.JWTSubject != "" {
		fmt.Fprintf(w, "JWT:     %s\n", resp.JWTSubject)
	}
	fmt.Fprintln(w)

	if resp.LedgerEmpty {
		fmt.Fprintln(w, "Ledger is empty - no activity to show.")
		return
	}

	writeTextDeposits(w, resp.Deposits)
	writeTextWithdrawals(w, resp.Withdrawals)
	writeTextHoldings(w, resp.Holdings)
	writeTextSummary(w, resp.Summary)
}

func writeTextDeposits(w io.Writer, deposits []DepositView) {
	fmt.Fprintln(w, "--- RECENT DEPOSITS (EVM → Canton) -----------------------------------")
	if len(deposits) == 0 {
		fmt.Fprintln(w, "No deposits found in the lookback range.")
	} else {
		for i, d := range deposits {
			fmt.Fprintf(w, "[%d] %s\n", i+1, ledger.FormatTime(d.Time))
			if d.Amount != "" {
				fmt.Fprintf(w, "    Amount:      %s %s\n", d.Amount, tokenSymbol)
			}
			if d.Recipient != "" {
				fmt.Fprintf(w, "    Recipient:   %s\n", ledger.TruncateParty(d.Recipient))
			}
			if d.EVMTx != "" {
				fmt.Fprintf(w, "    EVM Tx:      %s\n", ledger.TruncateHash(d.EVMTx))
			}
			if d.Fingerprint != "" {
				fmt.Fprintf(w, "    Fingerprint: %s\n", ledger.TruncateHash(d.Fingerprint))
			}
			fmt.Fprintf(w, "    Status:      %s\n", d.Status)
			fmt.Fprintf(w, "    Offset:      %d\n", d.Offset)
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintln(w)
}

func writeTextWithdrawals(w io.Writer, withdrawals []WithdrawalView) {
	fmt.Fprintln(w, "--- RECENT WITHDRAWALS (Canton → EVM) --------------------------------")
	if len(withdrawals) == 0 {
		fmt.Fprintln(w, "No withdrawals found in the lookback range.")
	} else {
		for i, wd := range withdrawals {
			fmt.Fprintf(w, "[%d] %s\n", i+1, ledger.FormatTime(wd.Time))
			if wd.Amount != "" {
				fmt.Fprintf(w, "    Amount:   %s %s\n", wd.Amount, tokenSymbol)
			}
			if wd.EVMDest != "" {
				fmt.Fprintf(w, "    EVM Dest: %s\n", wd.EVMDest)
			}
			fmt.Fprintf(w, "    Status:   %s\n", wd.Status)
			if wd.EVMTx != "" {
				fmt.Fprintf(w, "    EVM Tx:   %s\n", ledger.TruncateHash(wd.EVMTx))
			}
			if wd.RequestCID != "" {
				fmt.Fprintf(w, "    CID:      %s\n", ledger.TruncateHash(wd.RequestCID))
			}
			fmt.Fprintf(w, "    Offset:   %d\n", wd.Offset)
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintln(w)
}

func writeTextHoldings(w io.Writer, holdings []processor.HoldingInfo) {
	fmt.Fprintln(w, "--- CURRENT HOLDINGS -------------------------------------------------")
	if len(holdings) == 0 {
		fmt.Fprintln(w, "No CIP56Holding contracts found.")
	} else {
		for i, h := range holdings {
			fmt.Fprintf(w, "[%d] Owner: %s\n", i+1, ledger.TruncateParty(h.Owner))
			fmt.Fprintf(w, "    Balance:  %s %s\n", h.Amount, tokenSymbol)
			fmt.Fprintf(w, "    Token ID: %s\n", h.TokenID)
			fmt.Fprintf(w, "    CID:      %s\n", ledger.TruncateHash(h.ContractID))
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintln(w)
}

func writeTextSummary(w io.Writer, summary ActivitySummary) {
	fmt.Fprintln(w, "======================================================================")
	parts := []string{}
	if summary.DepositCount > 0 {
		parts = append(parts, fmt.Sprintf("%d deposit(s) totaling %s", summary.DepositCount, summary.TotalDeposited))
	}
	if summary.WithdrawalCount > 0 {
		parts = append(parts, fmt.Sprintf("%d withdrawal(s) totaling %s", summary.WithdrawalCount, summary.TotalWithdrawn))
	}
	if summary.HoldingCount > 0 {
		parts = append(parts, fmt.Sprintf("%d holding(s) totaling %s", summary.HoldingCount, summary.TotalHeld))
	}
	if len(parts) == 0 {
		fmt.Fprintln(w, "Summary: No bridge activity found")
	} else {
		fmt.Fprintf(w, "Summary: %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintln(w, "======================================================================")
}

func writeTextHoldingsReport(w io.Writer, resp *HoldingsResponse) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "======================================================================")
	fmt.Fprintln(w, "CANTON BRIDGE HOLDINGS SNAPSHOT")
	fmt.Fprintln(w, "======================================================================")
	fmt.Fprintf(w, "Network: %s\n", resp.Network)
	fmt.Fprintf(w, "Party:   %s\n", ledger.TruncateParty(resp.Party))
	fmt.Fprintf(w, "Time:    %s\n", resp.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Ledger:  Offset %d\n", resp.LedgerOffset)
	fmt.Fprintln(w)
	writeTextHoldings(w, resp.Holdings)
	fmt.Fprintln(w, "======================================================================")
	if resp.HoldingCount == 0 {
		fmt.Fprintln(w, "Summary: No holdings found")
	} else {
		fmt.Fprintf(w, "Summary: %d holding(s) totaling %s %s\n", resp.HoldingCount, resp.TotalHeld, tokenSymbol)
	}
	fmt.Fprintln(w, "======================================================================")
}
