package main

import "github.com/MrEthical07/goGuard/cmd/goguard/cmd"

func main() {
	cmd.Execute()
}
