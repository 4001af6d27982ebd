package main

import "github.com/user/compliance-radar/cmd"

func main() {
	cmd.Execute()
}
