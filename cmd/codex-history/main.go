package main

import "codex-history/internal/cmd"

func main() {
	cmd.Execute()
}
