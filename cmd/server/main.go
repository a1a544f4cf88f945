package main

import "teslo/internal/cli"

func main() {
	cli.Execute()
}
