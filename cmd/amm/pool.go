package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammEngine/internal/curve"
	"ammEngine/internal/model"
	"ammEngine/internal/pool"
)

func addPoolFlags(cmd *cobra.Command) {
	cmd.Flags().String("pool", "", "pool address or seed")
	cmd.Flags().String("actor", "", "address of the account submitting the operation")
	_ = cmd.MarkFlagRequired("pool")
}

// target reads --pool and --actor.
func target(cmd *cobra.Command) (common.Address, common.Address, error) {
	rawPool, _ := cmd.Flags().GetString("pool")
	rawActor, _ := cmd.Flags().GetString("actor")

	addr, err := model.ParsePoolID(rawPool)
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("--pool %q: %w", rawPool, err)
	}
	actor, err := optionalAddress("actor", rawActor)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return addr, actor, nil
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			seed, _ := cmd.Flags().GetUint64("seed")
			fee, _ := cmd.Flags().GetUint16("fee-bps")
			rawX, _ := cmd.Flags().GetString("mint-x")
			rawY, _ := cmd.Flags().GetString("mint-y")
			rawAuthority, _ := cmd.Flags().GetString("authority")
			rawActor, _ := cmd.Flags().GetString("actor")

			mintX, err := parseAddress("mint-x", rawX)
			if err != nil {
				return err
			}
			mintY, err := parseAddress("mint-y", rawY)
			if err != nil {
				return err
			}
			actor, err := optionalAddress("actor", rawActor)
			if err != nil {
				return err
			}
			req := pool.InitializeRequest{Seed: seed, FeeBps: fee, MintX: mintX, MintY: mintY, Actor: actor}
			if rawAuthority != "" {
				authority, err := parseAddress("authority", rawAuthority)
				if err != nil {
					return err
				}
				req.Authority = &authority
			}

			p, err := a.service().Initialize(a.ctx, req)
			if err != nil {
				return err
			}
			return printJSON(p)
		},
	}
	cmd.Flags().Uint64("seed", 0, "pool seed; the pool address is derived from it")
	cmd.Flags().Uint16("fee-bps", 30, "swap fee in basis points")
	cmd.Flags().String("mint-x", "", "token X address")
	cmd.Flags().String("mint-y", "", "token Y address")
	cmd.Flags().String("authority", "", "address allowed to lock and unlock the pool")
	cmd.Flags().String("actor", "", "address of the account creating the pool")
	_ = cmd.MarkFlagRequired("mint-x")
	_ = cmd.MarkFlagRequired("mint-y")
	return cmd
}

func newDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Mint shares by depositing both tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			addr, actor, err := target(cmd)
			if err != nil {
				return err
			}
			shares, _ := cmd.Flags().GetUint64("shares")
			maxX, _ := cmd.Flags().GetUint64("max-x")
			maxY, _ := cmd.Flags().GetUint64("max-y")
			exp, _ := cmd.Flags().GetInt64("expiration")

			res, p, err := a.service().Deposit(a.ctx, pool.DepositRequest{
				Pool: addr, Actor: actor, Shares: shares, MaxX: maxX, MaxY: maxY, Expiration: exp,
			})
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"result": res, "pool": p})
		},
	}
	addPoolFlags(cmd)
	cmd.Flags().Uint64("shares", 0, "shares to mint")
	cmd.Flags().Uint64("max-x", 0, "most token X to deposit")
	cmd.Flags().Uint64("max-y", 0, "most token Y to deposit")
	cmd.Flags().Int64("expiration", 0, "unix deadline, 0 for none")
	return cmd
}

func newWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Burn shares for both tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			addr, actor, err := target(cmd)
			if err != nil {
				return err
			}
			shares, _ := cmd.Flags().GetUint64("shares")
			minX, _ := cmd.Flags().GetUint64("min-x")
			minY, _ := cmd.Flags().GetUint64("min-y")
			exp, _ := cmd.Flags().GetInt64("expiration")

			res, p, err := a.service().Withdraw(a.ctx, pool.WithdrawRequest{
				Pool: addr, Actor: actor, Shares: shares, MinX: minX, MinY: minY, Expiration: exp,
			})
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"result": res, "pool": p})
		},
	}
	addPoolFlags(cmd)
	cmd.Flags().Uint64("shares", 0, "shares to burn")
	cmd.Flags().Uint64("min-x", 0, "least token X to receive")
	cmd.Flags().Uint64("min-y", 0, "least token Y to receive")
	cmd.Flags().Int64("expiration", 0, "unix deadline, 0 for none")
	return cmd
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Trade one token for the other",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			addr, actor, err := target(cmd)
			if err != nil {
				return err
			}
			rawIn, _ := cmd.Flags().GetString("in")
			in, err := curve.ParseAsset(rawIn)
			if err != nil {
				return err
			}
			amount, _ := cmd.Flags().GetUint64("amount")
			minOut, _ := cmd.Flags().GetUint64("min-out")
			exp, _ := cmd.Flags().GetInt64("expiration")

			res, p, err := a.service().Swap(a.ctx, pool.SwapRequest{
				Pool: addr, Actor: actor, In: in, AmountIn: amount, MinAmountOut: minOut, Expiration: exp,
			})
			if err != nil {
				return err
			}
			a.logger.Info("swap",
				zap.String("pool", addr.Hex()),
				zap.String("in", in.String()),
				zap.Uint64("deposited", res.Deposited),
				zap.Uint64("withdrawn", res.Withdrawn),
				zap.Uint64("fee", res.Fee),
			)
			return printJSON(map[string]interface{}{"result": res, "pool": p})
		},
	}
	addPoolFlags(cmd)
	cmd.Flags().String("in", "x", "token paid in (x or y)")
	cmd.Flags().Uint64("amount", 0, "amount paid in")
	cmd.Flags().Uint64("min-out", 0, "least amount to receive")
	cmd.Flags().Int64("expiration", 0, "unix deadline, 0 for none")
	return cmd
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap, deposit or withdrawal without applying it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			addr, _, err := target(cmd)
			if err != nil {
				return err
			}
			kind, _ := cmd.Flags().GetString("kind")
			svc := a.service()

			switch kind {
			case "swap":
				rawIn, _ := cmd.Flags().GetString("in")
				in, err := curve.ParseAsset(rawIn)
				if err != nil {
					return err
				}
				amount, _ := cmd.Flags().GetUint64("amount")
				res, after, err := svc.QuoteSwap(a.ctx, addr, in, amount)
				if err != nil {
					return err
				}
				return printJSON(map[string]interface{}{"result": res, "after": after})
			case "deposit":
				shares, _ := cmd.Flags().GetUint64("shares")
				res, after, err := svc.QuoteDeposit(a.ctx, addr, shares)
				if err != nil {
					return err
				}
				return printJSON(map[string]interface{}{"result": res, "after": after})
			case "withdraw":
				shares, _ := cmd.Flags().GetUint64("shares")
				res, after, err := svc.QuoteWithdraw(a.ctx, addr, shares)
				if err != nil {
					return err
				}
				return printJSON(map[string]interface{}{"result": res, "after": after})
			default:
				return fmt.Errorf("unknown quote kind %q (want swap, deposit or withdraw)", kind)
			}
		},
	}
	addPoolFlags(cmd)
	cmd.Flags().String("kind", "swap", "swap, deposit or withdraw")
	cmd.Flags().String("in", "x", "token paid in for a swap (x or y)")
	cmd.Flags().Uint64("amount", 0, "swap amount paid in")
	cmd.Flags().Uint64("shares", 0, "shares to mint or burn")
	return cmd
}

func newLockCmd(lock bool) *cobra.Command {
	use, short := "unlock", "Resume trading on a pool"
	if lock {
		use, short = "lock", "Stop deposits, withdrawals and swaps on a pool"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			addr, actor, err := target(cmd)
			if err != nil {
				return err
			}
			var p model.Pool
			if lock {
				p, err = a.service().Lock(a.ctx, addr, actor)
			} else {
				p, err = a.service().Unlock(a.ctx, addr, actor)
			}
			if err != nil {
				return err
			}
			return printJSON(p)
		},
	}
	addPoolFlags(cmd)
	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a pool with its invariant and spot prices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			addr, _, err := target(cmd)
			if err != nil {
				return err
			}
			view, err := a.service().Get(a.ctx, addr)
			if err != nil {
				return err
			}
			return printJSON(view)
		},
	}
	addPoolFlags(cmd)
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			pools, err := a.service().List(a.ctx)
			if err != nil {
				return err
			}
			if pools == nil {
				pools = []model.Pool{}
			}
			return printJSON(pools)
		},
	}
}
