package main

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pvzzle/stxwatch/internal/clarity"
	"github.com/pvzzle/stxwatch/internal/stacks"
	"github.com/pvzzle/stxwatch/internal/wallet"
)

var (
	walletAddress string
	buyPrice      string
)

var listAssetCmd = &cobra.Command{
	Use:   "list-asset <token-id> <price-stx>",
	Short: "List a token on the marketplace through the wallet bridge",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenID, err := parseTokenID(args[0])
		if err != nil {
			return err
		}
		price, err := wallet.ParseAmount(args[1])
		if err != nil {
			return err
		}
		if walletAddress == "" {
			return fmt.Errorf("--address is required")
		}

		core, err := newCore()
		if err != nil {
			return err
		}
		id, err := core.Actions.ListAsset(cmd.Context(), walletAddress, tokenID, price)
		if err != nil {
			return err
		}
		return submitted(cmd.Context(), core, id)
	},
}

var buyCmd = &cobra.Command{
	Use:   "buy <token-id>",
	Short: "Purchase a listed token through the wallet bridge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenID, err := parseTokenID(args[0])
		if err != nil {
			return err
		}
		if walletAddress == "" {
			return fmt.Errorf("--address is required")
		}

		core, err := newCore()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var price *big.Int
		if buyPrice != "" {
			if price, err = wallet.ParseAmount(buyPrice); err != nil {
				return err
			}
		} else {
			// The post-condition must match the listed price exactly.
			rec := core.Reader.Call(ctx, stacks.CallRequest{
				Contract: core.Contracts.Marketplace,
				Function: "get-listing",
				Args:     []clarity.Value{clarity.NewUInt(tokenID)},
				Sender:   cfg.ReadSender,
			})
			if clarity.IsAbsent(rec) {
				return fmt.Errorf("token %d is not listed", tokenID)
			}
			price = clarity.BigUint(clarity.Field(rec, "price"))
		}

		id, err := core.Actions.PurchaseAsset(ctx, walletAddress, tokenID, price)
		if err != nil {
			return err
		}
		return submitted(ctx, core, id)
	},
}

var stakeCmd = &cobra.Command{
	Use:   "stake <amount>",
	Short: "Stake tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := wallet.ParseAmount(args[0])
		if err != nil {
			return err
		}
		core, err := newCore()
		if err != nil {
			return err
		}
		id, err := core.Actions.Stake(cmd.Context(), amount)
		if err != nil {
			return err
		}
		return submitted(cmd.Context(), core, id)
	},
}

var unstakeCmd = &cobra.Command{
	Use:   "unstake <amount>",
	Short: "Unstake tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := wallet.ParseAmount(args[0])
		if err != nil {
			return err
		}
		core, err := newCore()
		if err != nil {
			return err
		}
		id, err := core.Actions.Unstake(cmd.Context(), amount)
		if err != nil {
			return err
		}
		return submitted(cmd.Context(), core, id)
	},
}

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim staking rewards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore()
		if err != nil {
			return err
		}
		id, err := core.Actions.ClaimRewards(cmd.Context())
		if err != nil {
			return err
		}
		return submitted(cmd.Context(), core, id)
	},
}

func init() {
	listAssetCmd.Flags().StringVar(&walletAddress, "address", "", "owner principal")
	buyCmd.Flags().StringVar(&walletAddress, "address", "", "buyer principal")
	buyCmd.Flags().StringVar(&buyPrice, "price", "", "price in STX (default: read from the listing)")
}

func parseTokenID(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("token id %q: %w", s, err)
	}
	return n, nil
}
