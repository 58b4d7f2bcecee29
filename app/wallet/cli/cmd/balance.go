package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

type balance struct {
	Account string `json:"account"`
	Name    string `json:"name"`
	Balance uint64 `json:"balance"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the balance for the wallet",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) {
	ks, err := keystore()
	if err != nil {
		log.Fatal(err)
	}

	w, err := ks.Load(accountName)
	if err != nil {
		log.Fatal(err)
	}

	accountID := w.AccountID()

	resp, err := http.Get(fmt.Sprintf("%s/v1/balance/%s", url, accountID))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var bal balance
	if err := json.NewDecoder(resp.Body).Decode(&bal); err != nil {
		log.Fatal(err)
	}

	fmt.Println("account:", bal.Account)
	fmt.Println("balance:", bal.Balance)
}
