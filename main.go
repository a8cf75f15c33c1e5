// The main package for the bds-harvester executable.
package main

import "github.com/realpulse/bds-harvester/cmd"

func main() {
	cmd.Execute()
}
