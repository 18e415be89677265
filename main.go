package main

import "github.com/chaos-io/momotalk/cmd"

func main() {
	cmd.Execute()
}
