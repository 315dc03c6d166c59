package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "newscollector"}

	root.AddCommand(collectCMD(), serveCMD())
	_ = root.Execute()
}
