package main

import "github.com/mwantia/asyncvfs/cmd/vfsctl/cmd"

func main() {
	cmd.Execute()
}
