package main

import "github.com/notargets/gomoc/cmd"

func main() {
	cmd.Execute()
}
