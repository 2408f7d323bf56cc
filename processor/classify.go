// Package processor reconstructs deduplicated bridge activity from the raw
// creation events of a Canton participant. One pass over an offset-bounded
// update stream classifies every created contract and correlates the deposit
// and withdrawal lifecycles into one record per logical transfer. A separate
// active-contract query snapshots current token holdings.
package processor

import (
	lapiv2 "github.com/chainsafe/canton-middleware/pkg/canton/lapi/v2"
)

// Bridge template identities. PendingDeposit lives in the shared
// fingerprint-auth module; DepositEvent is matched on entity name alone, the
// name is unique to the bridge's deposit receipt across deployed packages.
const (
	fingerprintAuthModule = "Common.FingerprintAuth"
	bridgeContractsModule = "Bridge.Contracts"
	tokenModule           = "CIP56.Token"

	pendingDepositEntity    = "PendingDeposit"
	depositEventEntity      = "DepositEvent"
	withdrawalRequestEntity = "WithdrawalRequest"
	withdrawalEventEntity   = "WithdrawalEvent"
	holdingEntity           = "CIP56Holding"
)

// IsDepositTemplate reports whether a template identity belongs to the
// deposit lifecycle.
func IsDepositTemplate(id *lapiv2.Identifier) bool {
	if id == nil {
		return false
	}
	return (id.ModuleName == fingerprintAuthModule && id.EntityName == pendingDepositEntity) ||
		id.EntityName == depositEventEntity
}

// IsWithdrawalTemplate reports whether a template identity belongs to the
// withdrawal lifecycle.
func IsWithdrawalTemplate(id *lapiv2.Identifier) bool {
	if id == nil {
		return false
	}
	return id.ModuleName == bridgeContractsModule &&
		(id.EntityName == withdrawalRequestEntity || id.EntityName == withdrawalEventEntity)
}

// IsHoldingTemplate reports whether a template identity is the bridge token
// holding contract.
func IsHoldingTemplate(id *lapiv2.Identifier) bool {
	if id == nil {
		return false
	}
	return id.ModuleName == tokenModule && id.EntityName == holdingEntity
}
