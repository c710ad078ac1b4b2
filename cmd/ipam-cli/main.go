package main

import "github.com/MikeAA97/IPAM-Prefix-Allocator/cmd/ipam-cli/cmd"

func main() {
	cmd.Execute()
}
