package main

import "github.com/theirongolddev/household/cmd"

func main() {
	cmd.Execute()
}
