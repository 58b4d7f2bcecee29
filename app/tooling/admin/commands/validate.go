package commands

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run a full integrity audit over the stored chain",
	Run:   validateRun,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateRun(cmd *cobra.Command, args []string) {
	st, err := openState()
	if err != nil {
		log.Fatal(err)
	}
	defer st.Shutdown()

	if err := st.ValidateChain(); err != nil {
		log.Fatalf("chain INVALID: %v", err)
	}

	fmt.Printf("chain valid, %d blocks\n", st.LatestBlock().Header.Number)
}
