// Package positions reads the file that maps job postings to the portal
// credentials used to look at them.
package positions

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknownPosition = errors.New("unknown position")

type Position struct {
	Name     string `yaml:"-"`
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
}

// Parse reads a YAML mapping of position name to credentials, positions are returned
// in the order they appear in the file.
//
//	ml-engineer:
//	  login: jdoe
//	  password: secret
func Parse(contents []byte) ([]Position, error) {
	var doc yaml.Node
	err := yaml.Unmarshal(contents, &doc)
	if err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of position names", root.Line)
	}

	seen := map[string]bool{}
	var result []Position
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		value := root.Content[i+1]

		var p Position
		err := value.Decode(&p)
		if err != nil {
			return nil, fmt.Errorf("position %s: %w", key.Value, err)
		}
		p.Name = key.Value

		err = p.validate()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", key.Line, err)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("line %d: position %s is listed twice", key.Line, p.Name)
		}
		seen[p.Name] = true

		result = append(result, p)
	}
	return result, nil
}

func (p Position) validate() error {
	if p.Name == "" || p.Name == "." || p.Name == ".." || strings.ContainsAny(p.Name, `/\`) {
		return fmt.Errorf("position name '%s' cannot be used as a directory name", p.Name)
	}
	if p.Login == "" {
		return fmt.Errorf("position %s has no login", p.Name)
	}
	return nil
}

// Load is Parse on the contents of a file.
func Load(path string) ([]Position, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	result, err := Parse(contents)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return result, nil
}

// Select picks the named positions in the order given, no names means all of them.
func Select(all []Position, names []string) ([]Position, error) {
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]Position, len(all))
	for _, p := range all {
		byName[p.Name] = p
	}

	selected := make([]Position, 0, len(names))
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPosition, name)
		}
		selected = append(selected, p)
	}
	return selected, nil
}
