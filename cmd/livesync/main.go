package main

import "github.com/vietddude/livesync/internal/cli"

func main() {
	cli.Execute()
}
