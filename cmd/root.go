package main

import "github.com/spf13/cobra"

func main() {
	var root = &cobra.Command{Use: "pdfchat"}

	root.AddCommand(serveCMD(), workerCMD())
	_ = root.Execute()
}
