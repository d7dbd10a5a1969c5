package main

import "github.com/jfenske/planward/cmd"

func main() {
	cmd.Execute()
}
