package main

import (
	"github.com/droplab/opendrop.go/pkg/cli/sh"

	_ "github.com/droplab/opendrop.go/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

func main() {
	sh.Main()
}
