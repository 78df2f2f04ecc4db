//go:generate mockgen -destination=./mocks/pipeline.go . Publisher

package pipeline

import (
	"context"
	"fmt"
)

// Step identifiers, in execution order.
const (
	StepPrepare           = "prepare"
	StepManifest          = "manifest"
	StepResolveBase       = "resolve-base"
	StepDownloadBase      = "download-base"
	StepResolveLibraries  = "resolve-libraries"
	StepDownloadLibraries = "download-libraries"
	StepResolveMods       = "resolve-mods"
	StepDownloadMods      = "download-mods"
	StepPostDownloadHooks = "post-download-hooks"
	StepOverrides         = "overrides"
	StepLaunch            = "launch"
	StepPrePackageHooks   = "pre-package-hooks"
	StepPackage           = "package"
	StepPublish           = "publish"
)

// Event phases besides the step identifiers.
const (
	PhaseDone  = "done"
	PhaseError = "error"
)

// Event represents a simple progress notification.
type Event struct {
	Phase string // step id, done or error
	ID    string // file sink for download events
	Msg   string
}

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
}

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

// Publisher uploads a finished bundle and returns where it was stored.
type Publisher interface {
	Publish(ctx context.Context, bundlePath string) (string, error)
}

// Result summarizes a finished build.
type Result struct {
	PackName    string
	PackVersion string
	Loader      string
	// BundlePath is the absolute path of the produced zip.
	BundlePath string
	// Location is where the bundle was published, empty when publishing is off.
	Location string
	// WorkDir is set when the work directory was kept.
	WorkDir   string
	Libraries int
	Mods      int
}

// StepError reports the step a build failed in.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
