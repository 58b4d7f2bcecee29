package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new key pair",
	Run:   generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) {
	ks, err := keystore()
	if err != nil {
		log.Fatal(err)
	}

	w, err := ks.Create(accountName)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("name:   ", accountName)
	fmt.Println("account:", w.AccountID())
}
