package main

import "github.com/corechain/ledger/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
