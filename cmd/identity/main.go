package main

import "github.com/emrgen/identity/cmd"

func main() {
	cmd.Execute()
}
