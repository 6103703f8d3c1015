// Package reconcile compares persisted pool reserves with the token balances
// actually held on chain.
package reconcile

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ammEngine/internal/chain"
	"ammEngine/internal/model"
)

// Reader reads token balances.
type Reader interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TotalSupply(ctx context.Context, token common.Address) (*big.Int, error)
}

type chainReader struct {
	caller chain.Caller
	block  *big.Int
}

// NewChainReader reads ERC20 balances through eth_call at block, or at the
// latest block when block is nil.
func NewChainReader(caller chain.Caller, block *big.Int) Reader {
	return &chainReader{caller: caller, block: block}
}

func (r *chainReader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return chain.BalanceOf(ctx, r.caller, token, owner, r.block)
}

func (r *chainReader) TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	return chain.TotalSupply(ctx, r.caller, token, r.block)
}

// Drift is one field whose stored and on-chain values differ. Delta is
// on-chain minus stored.
type Drift struct {
	Field   string `json:"field"`
	Stored  string `json:"stored"`
	OnChain string `json:"on_chain"`
	Delta   string `json:"delta"`
}

// Report is the reconciliation result for one pool.
type Report struct {
	Pool     common.Address `json:"pool"`
	VaultX   string         `json:"vault_x"`
	VaultY   string         `json:"vault_y"`
	LPSupply string         `json:"lp_supply"`
	Drifts   []Drift        `json:"drifts,omitempty"`
}

// InSync reports whether every field matched.
func (r Report) InSync() bool {
	return len(r.Drifts) == 0
}

// Reconciler checks pools concurrently.
type Reconciler struct {
	reader      Reader
	logger      *zap.Logger
	concurrency int
}

func New(reader Reader, logger *zap.Logger, concurrency int) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Reconciler{reader: reader, logger: logger, concurrency: concurrency}
}

// Run returns one report per pool, in the order given. The first read
// failure cancels the remaining pools.
func (r *Reconciler) Run(ctx context.Context, pools []model.Pool) ([]Report, error) {
	reports := make([]Report, len(pools))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, p := range pools {
		i, p := i, p
		g.Go(func() error {
			rep, err := r.check(gctx, p)
			if err != nil {
				return fmt.Errorf("pool %s: %w", p.Address.Hex(), err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	drifted := 0
	for _, rep := range reports {
		if !rep.InSync() {
			drifted++
			r.logger.Warn("pool drift",
				zap.String("pool", rep.Pool.Hex()),
				zap.Any("drifts", rep.Drifts),
			)
		}
	}
	r.logger.Info("reconcile complete", zap.Int("pools", len(pools)), zap.Int("drifted", drifted))
	return reports, nil
}

func (r *Reconciler) check(ctx context.Context, p model.Pool) (Report, error) {
	vaultX, err := r.reader.BalanceOf(ctx, p.MintX, p.Address)
	if err != nil {
		return Report{}, fmt.Errorf("vault x: %w", err)
	}
	vaultY, err := r.reader.BalanceOf(ctx, p.MintY, p.Address)
	if err != nil {
		return Report{}, fmt.Errorf("vault y: %w", err)
	}
	supply, err := r.reader.TotalSupply(ctx, p.MintLP)
	if err != nil {
		return Report{}, fmt.Errorf("lp supply: %w", err)
	}

	rep := Report{
		Pool:     p.Address,
		VaultX:   vaultX.String(),
		VaultY:   vaultY.String(),
		LPSupply: supply.String(),
	}
	rep.Drifts = appendDrift(rep.Drifts, "balance_x", p.BalanceX, vaultX)
	rep.Drifts = appendDrift(rep.Drifts, "balance_y", p.BalanceY, vaultY)
	rep.Drifts = appendDrift(rep.Drifts, "total_shares", p.TotalShares, supply)
	return rep, nil
}

func appendDrift(drifts []Drift, field string, stored uint64, onChain *big.Int) []Drift {
	s := new(big.Int).SetUint64(stored)
	if s.Cmp(onChain) == 0 {
		return drifts
	}
	return append(drifts, Drift{
		Field:   field,
		Stored:  s.String(),
		OnChain: onChain.String(),
		Delta:   new(big.Int).Sub(onChain, s).String(),
	})
}
