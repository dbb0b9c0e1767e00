// Package main is the entry point for the templar CLI.
package main

import "templar.dev/pkg/templar/cmd"

func main() {
	cmd.Execute()
}
