// Command mixctl works on preset directories offline: it imports
// CamillaDSP configs as presets and inspects or removes saved presets.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
