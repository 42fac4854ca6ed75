// Package main provides the multirow CLI.
package main

import "github.com/mesh-intelligence/multirow/internal/cli"

func main() {
	cli.Execute()
}
