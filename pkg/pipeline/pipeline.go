// Package pipeline builds a server bundle from a modpack manifest. A build is
// a fixed sequence of named steps; the first failing step halts it, so the
// package step never runs on an incomplete file set.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/glorpus-work/mcbundle/internal/logger"
	"github.com/glorpus-work/mcbundle/pkg/archive"
	"github.com/glorpus-work/mcbundle/pkg/config"
	"github.com/glorpus-work/mcbundle/pkg/download"
	"github.com/glorpus-work/mcbundle/pkg/fetch"
	"github.com/glorpus-work/mcbundle/pkg/hooks"
	"github.com/glorpus-work/mcbundle/pkg/manifest"
	"github.com/glorpus-work/mcbundle/pkg/source"
)

// bundleDirName is the directory under the work dir the server is assembled in.
const bundleDirName = "server"

// Pipeline runs builds with one configuration.
type Pipeline struct {
	cfg       *config.Config
	client    fetch.Doer
	archives  *archive.Manager
	publisher Publisher
	hooks     Hooks
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient sets the transport used for every download.
func WithHTTPClient(client fetch.Doer) Option {
	return func(p *Pipeline) { p.client = client }
}

// WithPublisher overrides the publisher built from publish.s3.
func WithPublisher(publisher Publisher) Option {
	return func(p *Pipeline) { p.publisher = publisher }
}

// WithHooks sets the progress callbacks.
func WithHooks(h Hooks) Option {
	return func(p *Pipeline) { p.hooks = h }
}

// New creates a pipeline for cfg.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		client:   fetch.NewHTTPClient(cfg.Download.Concurrency),
		archives: archive.NewManager(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// build is the state shared by the steps of one Build call.
type build struct {
	input string

	workDir     string
	tempWorkDir bool
	bundleDir   string

	pack   *manifest.Pack
	loader manifest.Loader
	hooks  *hooks.Manager

	fetcher   *fetch.Fetcher
	cfFetcher *fetch.Fetcher
	forge     *source.Forge

	base      []download.Request
	libraries []download.Request
	mods      []download.Request

	result Result
}

type step struct {
	id  string
	msg string
	run func(ctx context.Context, b *build) error
}

func (p *Pipeline) steps() []step {
	return []step{
		{StepPrepare, "preparing work directory", p.prepare},
		{StepManifest, "reading manifest", p.readManifest},
		{StepResolveBase, "resolving server jar and installer", p.resolveBase},
		{StepDownloadBase, "downloading server jar and installer", p.downloadBase},
		{StepResolveLibraries, "resolving loader libraries", p.resolveLibraries},
		{StepDownloadLibraries, "downloading loader libraries", p.downloadLibraries},
		{StepResolveMods, "resolving mod files", p.resolveMods},
		{StepDownloadMods, "downloading mod files", p.downloadMods},
		{StepPostDownloadHooks, "running post-download hooks", p.postDownloadHooks},
		{StepOverrides, "merging overrides", p.applyOverrides},
		{StepLaunch, "rendering launch files", p.renderLaunch},
		{StepPrePackageHooks, "running pre-package hooks", p.prePackageHooks},
		{StepPackage, "packaging bundle", p.packageBundle},
		{StepPublish, "publishing bundle", p.publish},
	}
}

// Build assembles the server bundle for the modpack at input, which may be a
// manifest.json file, a directory containing one, or a modpack zip.
func (p *Pipeline) Build(ctx context.Context, input string) (*Result, error) {
	b := &build{input: input}
	defer p.cleanup(b)

	start := time.Now()
	for _, s := range p.steps() {
		if err := ctx.Err(); err != nil {
			return nil, p.fail(s.id, err)
		}
		emit(p.hooks, Event{Phase: s.id, Msg: s.msg})
		logger.Debug("Running step", logger.Fields{"step": s.id})
		if err := s.run(ctx, b); err != nil {
			return nil, p.fail(s.id, err)
		}
	}

	if p.cfg.Build.KeepWorkDir {
		b.result.WorkDir = b.workDir
	}
	logger.Info("Bundle built", logger.Fields{
		"bundle":    b.result.BundlePath,
		"mods":      b.result.Mods,
		"libraries": b.result.Libraries,
		"duration":  time.Since(start).Round(time.Millisecond).String(),
	})
	emit(p.hooks, Event{Phase: PhaseDone, Msg: b.result.BundlePath})
	return &b.result, nil
}

func (p *Pipeline) fail(stepID string, err error) error {
	emit(p.hooks, Event{Phase: PhaseError, ID: stepID, Msg: err.Error()})

	fields := logger.Fields{"step": stepID, "error": err.Error()}
	if re := requestError(err); re != nil {
		fields["file"] = re.Request.String()
		fields["url"] = re.Request.URL
		fields["kind"] = string(download.Kind(re.Err))
	}
	logger.Error("Build failed", fields)
	return &StepError{Step: stepID, Err: err}
}

func (p *Pipeline) cleanup(b *build) {
	if b.workDir == "" || p.cfg.Build.KeepWorkDir {
		if b.workDir != "" {
			logger.Info("Keeping work directory", logger.Fields{"path": b.workDir})
		}
		return
	}
	target := b.bundleDir
	if b.tempWorkDir {
		target = b.workDir
	}
	if err := os.RemoveAll(target); err != nil {
		logger.Warn("Failed to remove work directory", logger.Fields{"path": target, "error": err.Error()})
	}
}

func (p *Pipeline) fetchOptions() fetch.Options {
	d := p.cfg.Download
	return fetch.Options{
		MaxAttempts: d.MaxRetries,
		RetryDelay:  d.RetryDelay,
		Timeout:     d.ReadTimeout,
		UserAgent:   d.UserAgent,
	}
}

func (p *Pipeline) coordinatorConfig() download.Config {
	return download.Config{
		Concurrency: p.cfg.Download.Concurrency,
		CheckHashes: p.cfg.Download.CheckHashes,
	}
}

func (b *build) path(rel string) string {
	return filepath.Join(b.bundleDir, filepath.FromSlash(rel))
}
