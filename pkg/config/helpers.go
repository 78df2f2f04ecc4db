package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/glorpus-work/mcbundle/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ToMap flattens the configuration into dotted keys such as
// "download.concurrency". This is useful for displaying the configuration.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)

	var node yaml.Node
	if err := node.Encode(c); err != nil {
		return result
	}
	flatten("", &node, result)
	return result
}

// Keys returns every settable key in sorted order.
func (c *Config) Keys() []string {
	// Encode a fully populated copy so omitempty keys are listed too.
	full := *c
	full.Sources.CurseForgeAPIKey = "x"
	full.Server.JVMArgs = []string{"x"}
	full.Build.WorkDir, full.Build.ArchiveName = "x", "x"
	full.Hooks = HooksConfig{PostDownload: []string{"x"}, PrePackage: []string{"x"}}
	full.Publish.S3 = S3Config{Bucket: "x", Region: "x", Prefix: "x", Endpoint: "x",
		AccessKeyID: "x", SecretAccessKey: "x", PathStyle: true}

	m := full.ToMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetValue returns a configuration value by dotted key.
func (c *Config) GetValue(key string) (string, error) {
	if !c.isKnownKey(key) {
		return "", fmt.Errorf("%w: %s", errors.ErrUnknownConfigKey, key)
	}
	return c.ToMap()[key], nil
}

// SetValue sets a configuration value by dotted key. List values are given as
// a comma separated string. The result is validated before it is kept.
func (c *Config) SetValue(key, value string) error {
	if !c.isKnownKey(key) {
		return fmt.Errorf("%w: %s", errors.ErrUnknownConfigKey, key)
	}

	leaf := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	if isListKey(key) {
		leaf = &yaml.Node{Kind: yaml.SequenceNode}
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				leaf.Content = append(leaf.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: item})
			}
		}
	}

	parts := strings.Split(key, ".")
	node := leaf
	for i := len(parts) - 1; i >= 0; i-- {
		node = &yaml.Node{
			Kind:    yaml.MappingNode,
			Content: []*yaml.Node{{Kind: yaml.ScalarNode, Value: parts[i]}, node},
		}
	}

	updated := *c
	if err := node.Decode(&updated); err != nil {
		return fmt.Errorf("%w for %s: %v", errors.ErrConfigValue, key, err)
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	*c = updated
	return nil
}

func (c *Config) isKnownKey(key string) bool {
	for _, k := range c.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

func isListKey(key string) bool {
	switch key {
	case "server.jvm_args", "hooks.post_download", "hooks.pre_package":
		return true
	}
	return false
}

func flatten(prefix string, node *yaml.Node, out map[string]string) {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			flatten(prefix, child, out)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			if prefix != "" {
				key = prefix + "." + key
			}
			flatten(key, node.Content[i+1], out)
		}
	case yaml.SequenceNode:
		items := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			items = append(items, item.Value)
		}
		out[prefix] = strings.Join(items, ",")
	default:
		out[prefix] = node.Value
	}
}
