package main

import "cursor-harvest/cmd"

func main() {
	cmd.Execute()
}
