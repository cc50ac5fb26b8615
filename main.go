package main

import "github.com/kebairia/restic-health/cmd"

func main() {
	cmd.Execute()
}
