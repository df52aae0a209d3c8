package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "copydesk"}

	root.AddCommand(serveCMD(), generateCMD(), migrateCMD())
	_ = root.Execute()
}
