package main

import "github.com/energynexus/nexus-cli/internal/cli"

func main() {
	cli.Execute()
}
