package main

import "github.com/deicod/yoyo/cliutil"

func main() {
	root := NewRootCmd()
	cliutil.Execute(root, &flags.verbose)
}
