package model

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// OperationKind names a ledger entry type.
type OperationKind string

const (
	OpInitialize OperationKind = "initialize"
	OpDeposit    OperationKind = "deposit"
	OpWithdraw   OperationKind = "withdraw"
	OpSwap       OperationKind = "swap"
	OpLock       OperationKind = "lock"
	OpUnlock     OperationKind = "unlock"
)

// Operation is the ledger record of one successful pool operation. Amounts
// are in the smallest unit of their asset; the balances are the reserves the
// pool holds after the operation.
type Operation struct {
	Pool        common.Address `json:"pool"`
	Kind        OperationKind  `json:"kind"`
	Actor       common.Address `json:"actor"`
	AssetIn     string         `json:"asset_in,omitempty"`
	AmountIn    uint64         `json:"amount_in,omitempty"`
	AmountOut   uint64         `json:"amount_out,omitempty"`
	Fee         uint64         `json:"fee,omitempty"`
	AmountX     uint64         `json:"amount_x,omitempty"`
	AmountY     uint64         `json:"amount_y,omitempty"`
	Shares      uint64         `json:"shares,omitempty"`
	BalanceX    uint64         `json:"balance_x"`
	BalanceY    uint64         `json:"balance_y"`
	TotalShares uint64         `json:"total_shares"`
	Timestamp   uint64         `json:"timestamp"`
	RecordedAt  string         `json:"recorded_at"`
}

// MarshalJSON ensures Operation is encoded with stable field names.
func (op Operation) MarshalJSON() ([]byte, error) {
	type Alias Operation
	return json.Marshal(Alias(op))
}

// UnmarshalJSON decodes an Operation from JSON.
func (op *Operation) UnmarshalJSON(data []byte) error {
	type Alias Operation
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*op = Operation(a)
	return nil
}
