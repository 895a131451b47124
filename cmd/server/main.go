package main

import "github.com/eventeye/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
