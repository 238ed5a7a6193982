// The main package for the newscrawler executable.
package main

import (
	"github.com/finsight/newscrawler/cmd"
)

func main() {
	cmd.Execute()
}
