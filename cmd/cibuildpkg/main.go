package main

import "github.com/goplus/cibuildpkg/cmd/cibuildpkg/internal"

func main() {
	internal.Execute()
}
