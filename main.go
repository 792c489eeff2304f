package main

import "github.com/ValentinKolb/dLoop/cmd"

func main() {
	cmd.Execute()
}
