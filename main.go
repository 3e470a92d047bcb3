package main

import "github.com/obskit/metrics/cmd"

var VERSION = "unknown"

func main() {
	cmd.VERSION = VERSION
	cmd.Execute()
}
