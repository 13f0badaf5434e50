package main

import "github.com/velosix/rednote-collector/cmd"

func main() {
	cmd.Execute()
}
