// Package main is the single-binary entrypoint for Kola.
package main

import "github.com/volo-kola/kola/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
