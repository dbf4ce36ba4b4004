package main

import "facelens/cmd"

func main() {
	cmd.Execute()
}
