package main

import "github.com/Sree5835/dynamic-pricing/internal/cmd"

func main() {
	cmd.Execute()
}
