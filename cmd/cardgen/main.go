package main

import "github.com/cvandijck/card-generator/cmd/cardgen/cmd"

func main() {
	cmd.Execute()
}
