package main

import (
	"os"

	"github.com/simonhull/hatch/internal/commands"
)

func main() {
	os.Exit(commands.Execute())
}
