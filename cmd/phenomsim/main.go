package main

import "phenomsim/internal/cli"

func main() {
	cli.Execute()
}
