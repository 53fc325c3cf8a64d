package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pvzzle/stxwatch/internal/app"
	"github.com/pvzzle/stxwatch/internal/stacks"
	"github.com/pvzzle/stxwatch/internal/tracker"
)

var txWait bool

type outcomeView struct {
	TxID     string `json:"tx_id"`
	State    string `json:"state"`
	Status   string `json:"status,omitempty"`
	TokenID  string `json:"token_id,omitempty"`
	Sender   string `json:"sender,omitempty"`
	Function string `json:"function,omitempty"`
	Polls    int    `json:"polls"`
	Explorer string `json:"explorer"`
}

var trackCmd = &cobra.Command{
	Use:   "track <tx-id>",
	Short: "Poll a transaction until it confirms, aborts or the budget runs out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !stacks.IsTxID(normalizeTxArg(args[0])) {
			return fmt.Errorf("%q is not a transaction id", args[0])
		}
		core, err := newCore()
		if err != nil {
			return err
		}
		return trackAndPrint(cmd.Context(), core, normalizeTxArg(args[0]))
	},
}

var broadcastCmd = &cobra.Command{
	Use:   "broadcast <signed-tx-hex>",
	Short: "Submit a signed transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tx, err := stacks.ParseRawTransaction(args[0])
		if err != nil {
			return err
		}
		core, err := newCore()
		if err != nil {
			return err
		}

		id, err := core.Broadcaster.Submit(cmd.Context(), tx)
		if err != nil {
			return err
		}
		return submitted(cmd.Context(), core, id)
	},
}

func init() {
	for _, c := range []*cobra.Command{broadcastCmd, listAssetCmd, buyCmd, stakeCmd, unstakeCmd, claimCmd} {
		c.Flags().BoolVar(&txWait, "wait", false, "track the transaction until it settles")
	}
}

func normalizeTxArg(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return s
}

// submitted prints the new transaction id, then tracks it when --wait is set.
func submitted(ctx context.Context, core *app.Core, txID string) error {
	if !txWait {
		return printResult(map[string]string{
			"tx_id":    txID,
			"explorer": tracker.ExplorerURL(txID, cfg.Network),
		}, fmt.Sprintf("Submitted %s\nExplorer: %s", txID, tracker.ExplorerURL(txID, cfg.Network)))
	}
	return trackAndPrint(ctx, core, txID)
}

func trackAndPrint(ctx context.Context, core *app.Core, txID string) error {
	out, err := core.Tracker.Track(ctx, txID)
	if err != nil {
		return err
	}

	view := outcomeView{
		TxID:     out.TxID,
		State:    string(out.State),
		Status:   string(out.Status),
		Sender:   out.Sender,
		Function: out.Function,
		Polls:    out.Polls,
		Explorer: tracker.ExplorerURL(out.TxID, cfg.Network),
	}
	if out.TokenID != nil {
		view.TokenID = out.TokenID.String()
	}
	if err := printResult(view, tracker.FormatOutcome(out, cfg.Network)); err != nil {
		return err
	}
	return out.Err()
}
