// Command line entry point for TermLens offline analysis.
package main

import "github.com/vantagelab/termlens/internal/interfaces/cli"

func main() {
	cli.Execute()
}
