package main

import "github.com/camonet/amrgold/cmd"

func main() {
	cmd.Execute()
}
