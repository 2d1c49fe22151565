package main

import "execintel-gateway/cmd/execintel/cmd"

func main() {
	cmd.Execute()
}
