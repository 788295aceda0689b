package root

import (
	"github.com/lumenboard/lumenboard/apps/cli/cmd/bootstrap"
	"github.com/lumenboard/lumenboard/apps/cli/cmd/workspace"
)

func init() {
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(workspace.Command())
}
