package main

import "github.com/aweris/rfile/cmd/rfile/cmd"

func main() {
	cmd.Execute()
}
