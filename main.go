// The main package for the gscerrors executable.
package main

import (
	"github.com/JakeFAU/gsc-crawl-errors/cmd"
)

func main() {
	cmd.Execute()
}
