package restyutil

import (
	"fmt"
	"log/slog"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// FilesystemOutput writes every exchange into its own file named
// `<prefix>-<message id>.txt`.
type FilesystemOutput struct {
	fs     billy.Filesystem
	prefix string
}

func NewFilesystemOutput(fs billy.Filesystem, prefix string) FilesystemOutput {
	return FilesystemOutput{fs: fs, prefix: prefix}
}

func (o FilesystemOutput) Write(id string, contents string) {
	name := fmt.Sprintf("%s-%s.txt", o.prefix, id)
	err := util.WriteFile(o.fs, name, []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "name", name, "err", err)
	}
}
