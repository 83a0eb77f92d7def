package main

import "journalcal/internal/cli"

func main() {
	cli.Execute()
}
