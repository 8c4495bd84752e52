package main

import "dealer-pricing/internal/cli"

func main() {
	cli.Execute()
}
