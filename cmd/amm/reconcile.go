package main

import (
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammEngine/internal/chain"
	"ammEngine/internal/model"
	"ammEngine/internal/reconcile"
)

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare stored reserves and share supply with on-chain token balances",
		RunE:  runReconcile,
	}
	cmd.Flags().String("rpc", "", "EVM RPC URL")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts per RPC call")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Int("concurrency", 4, "pools checked in parallel")
	cmd.Flags().String("pool", "", "only check this pool (address or seed)")
	cmd.Flags().Uint64("chain-id", 0, "fail unless the RPC serves this chain (0 accepts any)")
	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	client, err := chain.NewClient(a.ctx, a.cfg.RPCURL, a.cfg.MaxRetries, a.cfg.RetryBackoff)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	chainID, err := client.GetChainID(a.ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if want, _ := cmd.Flags().GetUint64("chain-id"); want != 0 && (!chainID.IsUint64() || chainID.Uint64() != want) {
		return fmt.Errorf("rpc serves chain %s, expected %d", chainID, want)
	}
	block, err := client.LatestBlockNumber(a.ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}

	svc := a.service()
	pools, err := svc.List(a.ctx)
	if err != nil {
		return err
	}
	if rawPool, _ := cmd.Flags().GetString("pool"); rawPool != "" {
		addr, err := model.ParsePoolID(rawPool)
		if err != nil {
			return fmt.Errorf("--pool %q: %w", rawPool, err)
		}
		view, err := svc.Get(a.ctx, addr)
		if err != nil {
			return err
		}
		pools = []model.Pool{view.Pool}
	}

	a.logger.Info("reconcile start",
		zap.String("rpc", a.cfg.RPCURL),
		zap.String("chain_id", chainID.String()),
		zap.Uint64("block", block),
		zap.Int("pools", len(pools)),
		zap.Int("concurrency", a.cfg.Concurrency),
	)

	reports, err := reconcile.New(reconcile.NewChainReader(client, new(big.Int).SetUint64(block)), a.logger, a.cfg.Concurrency).Run(a.ctx, pools)
	if err != nil {
		return err
	}
	if err := printJSON(reports); err != nil {
		return err
	}

	drifted := 0
	for _, r := range reports {
		if !r.InSync() {
			drifted++
		}
	}
	if drifted > 0 {
		return fmt.Errorf("%d of %d pools out of sync", drifted, len(reports))
	}
	return nil
}
