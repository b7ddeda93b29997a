package main

import "github.com/valpere/space2thread/cmd"

func main() {
	cmd.Execute()
}
