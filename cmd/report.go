package cmd

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/radiantsdao/burnwatch/internal/utils"
	"github.com/radiantsdao/burnwatch/pkg/instruction"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// reportCmd implements: burnwatch report highbid|raffle
//
// Builds the same report the watcher would for the given accounts and prints
// it. With --send it is also delivered to every destination.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build a report from on-chain accounts without waiting for a transaction",
}

var reportHighBidCmd = &cobra.Command{
	Use:   "highbid",
	Short: "Report the NFTs offered by a bid escrow",
	RunE: func(cmd *cobra.Command, args []string) error {
		escrow, err := pubkeyFlag(cmd, "escrow")
		if err != nil {
			return err
		}
		bidder, err := pubkeyFlag(cmd, "bidder")
		if err != nil {
			return err
		}
		return runReport(cmd, instruction.UpdateHighBid{HighestBidder: bidder, HighestBid: escrow})
	},
}

var reportRaffleCmd = &cobra.Command{
	Use:   "raffle",
	Short: "Report a payer's raffle escrow and the raffle's totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		raffle, err := pubkeyFlag(cmd, "raffle")
		if err != nil {
			return err
		}
		escrow, err := pubkeyFlag(cmd, "escrow")
		if err != nil {
			return err
		}
		payer, err := pubkeyFlag(cmd, "payer")
		if err != nil {
			return err
		}
		return runReport(cmd, instruction.BuyTicket{
			Variant:      instruction.TicketStandard,
			Payer:        payer,
			Raffle:       raffle,
			RaffleEscrow: escrow,
		})
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportHighBidCmd, reportRaffleCmd)
	reportCmd.PersistentFlags().Bool("send", false, "Deliver the report to every configured Discord destination")

	reportHighBidCmd.Flags().String("escrow", "", "Bid escrow account (the update_high_bid highest_bid argument)")
	reportHighBidCmd.Flags().String("bidder", "", "Bidder address")
	reportHighBidCmd.MarkFlagRequired("escrow")
	reportHighBidCmd.MarkFlagRequired("bidder")

	reportRaffleCmd.Flags().String("raffle", "", "Raffle account")
	reportRaffleCmd.Flags().String("escrow", "", "Payer's raffle escrow account")
	reportRaffleCmd.Flags().String("payer", "", "Payer address")
	reportRaffleCmd.MarkFlagRequired("raffle")
	reportRaffleCmd.MarkFlagRequired("escrow")
	reportRaffleCmd.MarkFlagRequired("payer")
}

func pubkeyFlag(cmd *cobra.Command, name string) (solana.PublicKey, error) {
	raw, _ := cmd.Flags().GetString(name)
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return key, nil
}

func runReport(cmd *cobra.Command, ix instruction.Instruction) error {
	s, err := loadSettings(viper.GetViper())
	if err != nil {
		return err
	}
	send, _ := cmd.Flags().GetBool("send")
	if send {
		if err := s.requireDiscord(); err != nil {
			return err
		}
	}
	proxy, _ := cmd.Flags().GetString("proxy")

	aggregator, err := newAggregator(s, proxy)
	if err != nil {
		return err
	}
	r, err := aggregator.Aggregate(cmd.Context(), ix)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), r.String())

	if !send {
		return nil
	}
	dispatcher, closeDiscord, err := newDispatcher(s)
	if err != nil {
		return err
	}
	defer closeDiscord()

	res, err := dispatcher.Dispatch(cmd.Context(), r)
	if err != nil {
		return err
	}
	utils.Log.Infof("Delivered to %d of %d destinations (%d guilds without a destination)", res.Delivered, res.Attempted, res.Skipped)
	if res.Failed > 0 {
		return fmt.Errorf("%d deliveries failed", res.Failed)
	}
	return nil
}
