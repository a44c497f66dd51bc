package main

import (
	"hrpull/cmd/hrpull/commands"
	"hrpull/lib/osutil"
)

func main() {
	commands.ExecuteContext(osutil.SignalContext())
}
