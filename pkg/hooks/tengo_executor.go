package hooks

import (
	"context"
	"fmt"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/glorpus-work/mcbundle/pkg/errors"
)

// scriptModules are the tengo stdlib modules a hook may import.
var scriptModules = []string{"fmt", "os", "text", "times", "json", "enum"}

// TengoExecutor runs hook scripts written in tengo.
type TengoExecutor struct{}

// NewTengoExecutor creates a new tengo script executor.
func NewTengoExecutor() *TengoExecutor {
	return &TengoExecutor{}
}

// Execute compiles and runs hook with the variables of hc. A script reports
// failure by assigning a non-empty string or an error value to err.
func (e *TengoExecutor) Execute(ctx context.Context, hook Hook, hc Context) error {
	script := tengo.NewScript([]byte(hook.Content))
	script.SetImports(stdlib.GetModuleMap(scriptModules...))

	vars := map[string]interface{}{
		"bundleDir":        hc.BundleDir,
		"packName":         hc.PackName,
		"packVersion":      hc.PackVersion,
		"minecraftVersion": hc.MinecraftVersion,
		"loader":           hc.Loader,
		"phase":            string(hook.Phase),
		"err":              "",
	}
	for k, v := range hc.Vars {
		vars[k] = v
	}
	for k, v := range vars {
		if err := script.Add(k, v); err != nil {
			return fmt.Errorf("failed to add variable '%s' to hook %s: %w", k, hook.Name, err)
		}
	}

	compiled, err := script.RunContext(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", hook.Name, errors.ErrHookExecution, err)
	}

	errVar := compiled.Get("err")
	switch v := errVar.Value().(type) {
	case error:
		return fmt.Errorf("%s: %w: %w", hook.Name, errors.ErrHookScript, v)
	case string:
		if v != "" {
			return fmt.Errorf("%s: %w: %s", hook.Name, errors.ErrHookScript, v)
		}
	}
	return nil
}
