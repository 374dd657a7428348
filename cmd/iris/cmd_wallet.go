package main

import (
	"fmt"
	"math/big"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"IRIS-Agents/internal/wallet"
)

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.Flags().Bool("offline", false, "only validate and checksum the address")
}

var walletCmd = &cobra.Command{
	Use:   "wallet <address>",
	Short: "Show the connected wallet: checksum address, chain and balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := wallet.ParseAddress(args[0])
		if err != nil {
			return err
		}
		address := account.Hex()
		out := cmd.OutOrStdout()
		if offline, _ := cmd.Flags().GetBool("offline"); offline {
			fmt.Fprintln(out, address)
			return nil
		}

		client, err := apiClient()
		if err != nil {
			return err
		}
		snapshot, err := client.Wallet(cmd.Context(), address)
		if err != nil {
			return fmt.Errorf("wallet snapshot: %w", err)
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "ADDRESS\t%s\n", snapshot.Address)
		fmt.Fprintf(w, "CHAIN\t%s (id %s)\n", orDash(snapshot.Chain), bigString(snapshot.ChainID))
		fmt.Fprintf(w, "BLOCK\t%d\n", snapshot.BlockNumber)
		fmt.Fprintf(w, "BALANCE\t%s ETH\n", formatEther(snapshot.Balance))
		fmt.Fprintf(w, "NONCE\t%d\n", snapshot.Nonce)
		return w.Flush()
	},
}

func bigString(n *big.Int) string {
	if n == nil {
		return "-"
	}
	return n.String()
}

// formatEther 将 wei 换算为 ETH，保留 6 位小数。
func formatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	ether := new(big.Rat).SetFrac(wei, big.NewInt(1_000_000_000_000_000_000))
	return ether.FloatString(6)
}
