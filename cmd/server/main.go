package main // Entry point package

import "github.com/iliyamo/spacebook/internal/cli"

func main() {
	cli.Execute()
}
