package commands

import (
	"fmt"
	"log"
	"sort"

	"github.com/corechain/ledger/foundation/ledger/database"
	"github.com/spf13/cobra"
)

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Replay the chain and print every account balance",
	Run:   balancesRun,
}

func init() {
	rootCmd.AddCommand(balancesCmd)
}

func balancesRun(cmd *cobra.Command, args []string) {
	st, err := openState()
	if err != nil {
		log.Fatal(err)
	}
	defer st.Shutdown()

	accounts := st.Accounts()

	ids := make([]string, 0, len(accounts))
	for accountID := range accounts {
		ids = append(ids, string(accountID))
	}
	sort.Strings(ids)

	fmt.Printf("blocks: %d\n", st.LatestBlock().Header.Number)
	for _, id := range ids {
		fmt.Printf("%s: %d\n", id, accounts[database.AccountID(id)].Balance)
	}
}
