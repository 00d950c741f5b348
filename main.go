package main

import "evmconnect/cmd"

// Version should be set during build
var Version = "dev"

func main() {
	cmd.Version = Version
	cmd.Execute()
}
