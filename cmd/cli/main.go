package main

import (
	"os"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-insights/internal/commands"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
