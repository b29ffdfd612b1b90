package main

import "github.com/ftl/trusdx/cmd"

func main() {
	cmd.Execute()
}
