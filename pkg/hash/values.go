package hash

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Values is the accepted digest set of a constraint. In JSON and YAML it may be
// written either as a single string or as a list.
type Values []string

// UnmarshalJSON accepts "abc" as well as ["abc", "def"].
func (v *Values) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*v = Values{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("accepted digests must be a string or a list of strings: %w", err)
	}
	*v = Values(many)
	return nil
}

// UnmarshalYAML accepts a scalar as well as a sequence.
func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*v = Values{node.Value}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*v = Values(many)
		return nil
	default:
		return fmt.Errorf("line %d: accepted digests must be a string or a list of strings", node.Line)
	}
}
