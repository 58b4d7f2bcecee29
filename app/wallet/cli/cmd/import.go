package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var privateKeyHex string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an existing private key",
	Run:   importRun,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&privateKeyHex, "key", "k", "", "Hex encoded private key to import.")
	importCmd.MarkFlagRequired("key")
}

func importRun(cmd *cobra.Command, args []string) {
	ks, err := keystore()
	if err != nil {
		log.Fatal(err)
	}

	w, err := ks.Import(accountName, privateKeyHex)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("name:   ", accountName)
	fmt.Println("account:", w.AccountID())
}
