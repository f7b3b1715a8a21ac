package main

import (
	"os"

	"github.com/ctavolazzi/novasystem/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
