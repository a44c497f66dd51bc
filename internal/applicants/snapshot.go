package applicants

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"

	"hrpull/lib/fsutil"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"
)

// SnapshotFile is the name of the snapshot inside a position directory.
const SnapshotFile = "candidates.yaml"

// LoadSnapshot reads the snapshot of the position stored in `dir`, a missing or
// empty file is an empty snapshot.
func LoadSnapshot(fs billy.Filesystem, dir string) (Snapshot, error) {
	name := path.Join(dir, SnapshotFile)
	contents, err := util.ReadFile(fs, name)
	if os.IsNotExist(err) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", name, err)
	}

	snapshot := Snapshot{}
	err = yaml.Unmarshal(contents, &snapshot)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", name, err)
	}
	for id, c := range snapshot {
		if c == nil {
			return nil, fmt.Errorf("parse snapshot %s: candidate %d has no record", name, id)
		}
		if c.ID != id {
			return nil, fmt.Errorf("parse snapshot %s: candidate %d is stored under %d", name, c.ID, id)
		}
	}
	return snapshot, nil
}

// EncodeSnapshot renders the snapshot the way it is stored, multi-line strings become
// literal blocks with trailing whitespace stripped so hand written notes stay readable.
func EncodeSnapshot(snapshot Snapshot) ([]byte, error) {
	if snapshot == nil {
		snapshot = Snapshot{}
	}

	var node yaml.Node
	err := node.Encode(snapshot)
	if err != nil {
		return nil, err
	}
	literalizeMultiline(&node)

	buff := &bytes.Buffer{}
	enc := yaml.NewEncoder(buff)
	enc.SetIndent(2)
	err = enc.Encode(&node)
	if err != nil {
		return nil, err
	}
	err = enc.Close()
	if err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

func literalizeMultiline(node *yaml.Node) {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!str" && strings.Contains(node.Value, "\n") {
		lines := strings.Split(node.Value, "\n")
		for i, l := range lines {
			lines[i] = strings.TrimRight(l, " \t")
		}
		node.Value = strings.Join(lines, "\n")
		node.Style = yaml.LiteralStyle
		return
	}
	for _, child := range node.Content {
		literalizeMultiline(child)
	}
}

// SaveSnapshot replaces the snapshot of the position stored in `dir`.
func SaveSnapshot(fs billy.Filesystem, dir string, snapshot Snapshot) error {
	contents, err := EncodeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return fsutil.WriteFileAtomic(fs, path.Join(dir, SnapshotFile), contents)
}
