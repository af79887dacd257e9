// file: cmd/sigtool/main.go
package main

import (
	"os"

	"webhook-gateway/cmd/sigtool/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		// Cobra prints the error, so we just need to exit
		os.Exit(1)
	}
}
