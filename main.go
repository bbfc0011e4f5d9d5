package main

import (
	"os"

	"fusionbatch/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
