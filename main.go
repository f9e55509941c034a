package main

import "github.com/neuralux/convoengine/cmd"

func main() {
	cmd.Execute()
}
