// The main package for the normascout executable.
package main

import (
	"github.com/leggilab/normascout/cmd"
)

func main() {
	cmd.Execute()
}
