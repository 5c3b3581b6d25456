package main

import "retrace/cmd"

func main() {
	cmd.Execute()
}
