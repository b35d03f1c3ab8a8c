package main

import "github.com/audiolibrelab/asrbench/cmd"

func main() {
	cmd.Execute()
}
