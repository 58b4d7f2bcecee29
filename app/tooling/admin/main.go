package main

import "github.com/corechain/ledger/app/tooling/admin/commands"

func main() {
	commands.Execute()
}
