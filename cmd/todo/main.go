// Command todo is a tiny local TODO list.
package main

import (
	"os"

	"todo-cli/cli"
)

func main() {
	os.Exit(cli.Execute())
}
