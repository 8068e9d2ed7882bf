// Package all pulls in every shell command provider.
package all

import (
	_ "github.com/droplab/opendrop.go/pkg/cli/cmds/board"
)
