package main

import "github.com/x64kit/x64asm/cmd/x64asm/cmd"

func main() {
	cmd.Execute()
}
