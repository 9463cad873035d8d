package main

import (
	"price-watch/internal/cli"
)

func main() {
	cli.Execute()
}
