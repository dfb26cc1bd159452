// Command deltacache exercises the list delta cache: a synthetic polling
// benchmark and an offline snapshot-history metrics tool.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
