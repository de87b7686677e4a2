package main

import "github.com/notargets/hpfem/cmd"

func main() {
	cmd.Execute()
}
