package hooks

import "context"

// Phase names the point in a build at which hooks run.
type Phase string

// Supported hook phases.
const (
	PostDownload Phase = "post-download"
	PrePackage   Phase = "pre-package"
)

// Phases lists every phase in build order.
var Phases = []Phase{PostDownload, PrePackage}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// Hook is one script bound to a phase.
type Hook struct {
	Phase Phase
	// Name identifies the hook in logs and errors, usually its file path.
	Name    string
	Content string
}

// Context holds the values exposed to hook scripts.
type Context struct {
	BundleDir        string
	PackName         string
	PackVersion      string
	MinecraftVersion string
	Loader           string
	Vars             map[string]interface{}
}

// Runner executes the hooks registered for a phase.
type Runner interface {
	// Run executes every hook of phase in registration order and stops at the
	// first failure.
	Run(ctx context.Context, phase Phase, hc Context) error

	// Has reports whether any hook is registered for phase.
	Has(phase Phase) bool
}
