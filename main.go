// The main package for the llmstxt-sync executable.
package main

import (
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/cmd"
)

func main() {
	cmd.Execute()
}
