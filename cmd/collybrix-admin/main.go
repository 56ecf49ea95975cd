package main

import (
	"fmt"
	"os"

	"github.com/Manumac86/collybrix-admin-sub001/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
