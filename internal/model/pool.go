package model

import (
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Pool is the persisted configuration and reserve record of one pool.
type Pool struct {
	Address         common.Address  `json:"address"`
	Seed            uint64          `json:"seed"`
	Authority       *common.Address `json:"authority,omitempty"`
	MintX           common.Address  `json:"mint_x"`
	MintY           common.Address  `json:"mint_y"`
	MintLP          common.Address  `json:"mint_lp"`
	FeeBps          uint16          `json:"fee_bps"`
	PrecisionDigits uint8           `json:"precision_digits"`
	Locked          bool            `json:"locked"`
	BalanceX        uint64          `json:"balance_x"`
	BalanceY        uint64          `json:"balance_y"`
	TotalShares     uint64          `json:"total_shares"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Empty reports whether the pool holds no reserves and no shares.
func (p Pool) Empty() bool {
	return p.BalanceX == 0 && p.BalanceY == 0 && p.TotalShares == 0
}

// PoolAddress derives the pool address from its seed.
func PoolAddress(seed uint64) common.Address {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	return deriveAddress([]byte("config"), buf[:])
}

// LPMintAddress derives the share mint address of a pool.
func LPMintAddress(pool common.Address) common.Address {
	return deriveAddress([]byte("lp"), pool.Bytes())
}

// ErrInvalidPoolID is returned by ParsePoolID.
var ErrInvalidPoolID = errors.New("pool id must be a hex address or a decimal seed")

// ParsePoolID resolves a 0x-prefixed address, or a decimal seed through
// PoolAddress.
func ParsePoolID(id string) (common.Address, error) {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "0x") || strings.HasPrefix(id, "0X") {
		if !common.IsHexAddress(id) {
			return common.Address{}, ErrInvalidPoolID
		}
		return common.HexToAddress(id), nil
	}
	seed, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return common.Address{}, ErrInvalidPoolID
	}
	return PoolAddress(seed), nil
}

func deriveAddress(parts ...[]byte) common.Address {
	return common.BytesToAddress(crypto.Keccak256(parts...)[12:])
}
