package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the account id for the wallet",
	Run:   accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) {
	ks, err := keystore()
	if err != nil {
		log.Fatal(err)
	}

	w, err := ks.Load(accountName)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(w.AccountID())
}
