package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

var (
	to    string
	value uint64
	fee   uint64
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send value to another account",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Account receiving the value.")
	sendCmd.Flags().Uint64VarP(&value, "value", "v", 0, "Value to send.")
	sendCmd.Flags().Uint64VarP(&fee, "fee", "f", 0, "Fee offered to the miner.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("value")
}

func sendRun(cmd *cobra.Command, args []string) {
	ks, err := keystore()
	if err != nil {
		log.Fatal(err)
	}

	w, err := ks.Load(accountName)
	if err != nil {
		log.Fatal(err)
	}

	// The node holds the same keystore folder and signs on our behalf.
	req := struct {
		From  string `json:"from"`
		To    string `json:"to"`
		Value uint64 `json:"value"`
		Fee   uint64 `json:"fee"`
	}{
		From:  string(w.AccountID()),
		To:    to,
		Value: value,
		Fee:   fee,
	}

	data, err := json.Marshal(req)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/wallet/transaction", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatal(err)
	}

	if resp.StatusCode != http.StatusCreated {
		log.Fatalf("send failed: %s: %s", resp.Status, body)
	}

	fmt.Println(string(body))
}
