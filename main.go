package main

import "github.com/AzielCF/az-collab/cmd"

func main() {
	cmd.Execute()
}
