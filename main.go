package main

import (
	"fmt"
	"os"

	"github.com/347255699/comfystyle/cmd"
)

func main() {
	if err := cmd.Commands().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
