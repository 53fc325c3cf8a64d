package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pvzzle/stxwatch/internal/clarity"
	"github.com/pvzzle/stxwatch/internal/market"
	"github.com/pvzzle/stxwatch/internal/stacks"
	"github.com/pvzzle/stxwatch/internal/tg"
	"github.com/pvzzle/stxwatch/internal/tracker"
)

var (
	listingsMax uint64
	readSender  string
)

type listingView struct {
	TokenID     uint64 `json:"token_id"`
	Price       string `json:"price"`
	PriceSTX    string `json:"price_stx"`
	Seller      string `json:"seller"`
	MetadataCID string `json:"metadata_cid"`
	Name        string `json:"name"`
	Image       string `json:"image"`
}

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "List active marketplace listings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var ls []market.Listing
		if listingsMax > 0 {
			ls = core.Listings.ListAll(ctx, listingsMax)
		} else {
			ls = core.Listings.Listings(ctx)
		}

		views := make([]listingView, 0, len(ls))
		for _, l := range ls {
			views = append(views, listingView{
				TokenID:     l.TokenID,
				Price:       l.Price.String(),
				PriceSTX:    tracker.MicroToSTX(l.Price),
				Seller:      l.Seller,
				MetadataCID: l.MetadataCID,
				Name:        l.Metadata.Name,
				Image:       core.Gateway.ImageURL(l.Metadata),
			})
		}
		return printResult(views, tg.FormatListings(ls))
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <principal>",
	Short: "Show token, staked and claimable balances",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore()
		if err != nil {
			return err
		}
		bal, err := core.Balances.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(map[string]string{
			"spendable": bal.Spendable.String(),
			"staked":    bal.Staked.String(),
			"claimable": bal.Claimable.String(),
		}, tg.FormatBalance(args[0], bal))
	},
}

var readCmd = &cobra.Command{
	Use:   "read <address.contract> <function> [args...]",
	Short: "Call a read-only contract function",
	Long: `Call a read-only contract function and print the raw result.

Arguments use Clarity literal syntax: u7, -3, true, 'SP... principals,
"text" strings, or 0x-prefixed serialized values.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, err := stacks.ParseContractID(args[0])
		if err != nil {
			return err
		}
		callArgs := make([]clarity.Value, 0, len(args)-2)
		for _, a := range args[2:] {
			v, err := clarity.ParseArg(a)
			if err != nil {
				return fmt.Errorf("argument %q: %w", a, err)
			}
			callArgs = append(callArgs, v)
		}

		core, err := newCore()
		if err != nil {
			return err
		}
		sender := readSender
		if sender == "" {
			sender = cfg.ReadSender
		}

		v, err := core.Reader.CallStrict(cmd.Context(), stacks.CallRequest{
			Contract: contract,
			Function: args[1],
			Args:     callArgs,
			Sender:   sender,
		})
		if err != nil {
			return err
		}

		hex, err := clarity.SerializeHex(v)
		if err != nil {
			return err
		}
		repr := clarity.Repr(v)
		return printResult(map[string]string{"repr": repr, "hex": hex}, strings.TrimSpace(repr))
	},
}

func init() {
	listingsCmd.Flags().Uint64Var(&listingsMax, "max", 0, "highest token id to scan (default: last minted id)")
	readCmd.Flags().StringVar(&readSender, "sender", "", "sender principal (default READ_SENDER)")
}
