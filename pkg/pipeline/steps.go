package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glorpus-work/mcbundle/internal/logger"
	"github.com/glorpus-work/mcbundle/pkg/download"
	"github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/glorpus-work/mcbundle/pkg/fetch"
	"github.com/glorpus-work/mcbundle/pkg/fsutil"
	"github.com/glorpus-work/mcbundle/pkg/hooks"
	"github.com/glorpus-work/mcbundle/pkg/launch"
	"github.com/glorpus-work/mcbundle/pkg/manifest"
	"github.com/glorpus-work/mcbundle/pkg/publish"
	"github.com/glorpus-work/mcbundle/pkg/source"
)

// packHooksDir holds hook scripts shipped next to a directory modpack.
const packHooksDir = ".mcbundle/hooks"

func (p *Pipeline) prepare(_ context.Context, b *build) error {
	workDir := p.cfg.Build.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "mcbundle-*")
		if err != nil {
			return fmt.Errorf("failed to create work directory: %w", err)
		}
		workDir = dir
		b.tempWorkDir = true
	}

	abs, err := filepath.Abs(workDir)
	if err != nil {
		return err
	}
	b.workDir = abs
	b.bundleDir = filepath.Join(abs, bundleDirName)

	// A kept bundle dir from an earlier run would leak stale mods.
	if err := os.RemoveAll(b.bundleDir); err != nil {
		return fmt.Errorf("failed to clear %s: %w", b.bundleDir, err)
	}
	if err := fsutil.EnsureDir(b.bundleDir); err != nil {
		return fmt.Errorf("failed to create %s: %w", b.bundleDir, err)
	}

	b.fetcher = fetch.New(p.client, p.fetchOptions())

	cfOpts := p.fetchOptions()
	cfOpts.Auth = source.APIKey(p.cfg.Sources.CurseForgeAPIKey)
	b.cfFetcher = fetch.New(p.client, cfOpts)
	b.forge = source.NewForge(b.fetcher, p.archives, p.cfg.Sources.ForgeMavenURL)
	return nil
}

func (p *Pipeline) readManifest(ctx context.Context, b *build) error {
	pack, err := manifest.Load(ctx, b.input, p.archives)
	if err != nil {
		return err
	}
	loader, err := pack.Manifest.PrimaryLoader()
	if err != nil {
		return err
	}

	files := pack.Manifest.RequiredFiles(p.cfg.Sources.IncludeOptional)
	if len(files) > 0 && p.cfg.Sources.CurseForgeAPIKey == "" {
		return errors.ErrMissingAPIKey
	}

	b.pack = pack
	b.loader = loader
	b.result.PackName = pack.Manifest.Name
	b.result.PackVersion = pack.Manifest.Version
	b.result.Loader = loader.String()

	b.hooks = hooks.NewManager()
	if err := hooks.LoadFiles(b.hooks, hooks.PostDownload, p.cfg.Hooks.PostDownload); err != nil {
		return err
	}
	if err := hooks.LoadFiles(b.hooks, hooks.PrePackage, p.cfg.Hooks.PrePackage); err != nil {
		return err
	}
	if pack.Kind != manifest.SourceArchive {
		if err := hooks.LoadFromDir(b.hooks, filepath.Join(pack.Path, filepath.FromSlash(packHooksDir))); err != nil {
			return err
		}
	}

	logger.Info("Building server bundle", logger.Fields{
		"pack":      pack.Manifest.Name,
		"version":   pack.Manifest.Version,
		"minecraft": loader.MinecraftVersion,
		"loader":    loader.String(),
		"files":     len(files),
	})
	return nil
}

func (p *Pipeline) resolveBase(ctx context.Context, b *build) error {
	mojang := source.NewMojang(b.fetcher, p.cfg.Sources.MojangManifestURL)
	server, err := mojang.ServerRequest(ctx, b.loader.MinecraftVersion, launch.ServerJarSink(b.loader))
	if err != nil {
		return err
	}
	installer, err := b.forge.InstallerRequest(ctx, b.loader)
	if err != nil {
		return err
	}
	b.base = []download.Request{server, installer}
	return nil
}

func (p *Pipeline) downloadBase(ctx context.Context, b *build) error {
	_, err := p.download(ctx, StepDownloadBase, b, b.base)
	return err
}

func (p *Pipeline) resolveLibraries(ctx context.Context, b *build) error {
	requests, err := b.forge.LibraryRequests(ctx, b.path(source.InstallerSink(b.loader)))
	if err != nil {
		return err
	}
	b.libraries = requests
	return nil
}

func (p *Pipeline) downloadLibraries(ctx context.Context, b *build) error {
	n, err := p.download(ctx, StepDownloadLibraries, b, b.libraries)
	b.result.Libraries = n
	return err
}

func (p *Pipeline) resolveMods(ctx context.Context, b *build) error {
	files := b.pack.Manifest.RequiredFiles(p.cfg.Sources.IncludeOptional)
	cf := source.NewCurseForge(b.cfFetcher, p.coordinatorConfig(), p.cfg.Sources.CurseForgeAPIURL, logObserver(StepResolveMods))
	requests, err := cf.ModRequests(ctx, files)
	if err != nil {
		return downloadError(err)
	}
	b.mods = requests
	return nil
}

func (p *Pipeline) downloadMods(ctx context.Context, b *build) error {
	n, err := p.download(ctx, StepDownloadMods, b, b.mods)
	b.result.Mods = n
	return err
}

func (p *Pipeline) postDownloadHooks(ctx context.Context, b *build) error {
	return b.hooks.Run(ctx, hooks.PostDownload, b.hookContext())
}

func (p *Pipeline) applyOverrides(ctx context.Context, b *build) error {
	m := b.pack.Manifest
	if b.pack.Kind == manifest.SourceArchive {
		n, err := p.archives.ExtractDir(ctx, b.pack.Path, m.Overrides, b.bundleDir)
		if err != nil {
			return err
		}
		logger.Debug("Extracted overrides", logger.Fields{"files": n})
		return nil
	}

	dir := b.pack.OverridesDir()
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		logger.Debug("Modpack has no overrides", logger.Fields{"path": dir})
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.Wrapf(errors.ErrManifestInvalid, "overrides %s is not a directory", dir)
	}
	return fsutil.CopyTree(dir, b.bundleDir)
}

func (p *Pipeline) renderLaunch(_ context.Context, b *build) error {
	srv := p.cfg.Server
	_, err := launch.Write(b.bundleDir, launch.Options{
		PackName:    b.pack.Manifest.Name,
		PackVersion: b.pack.Manifest.Version,
		Loader:      b.loader,
		JavaPath:    srv.JavaPath,
		Memory:      srv.Memory,
		JVMArgs:     srv.JVMArgs,
		AcceptEULA:  srv.AcceptEULA,
		Platform:    srv.Platform,
	})
	if err != nil {
		return err
	}
	if !srv.AcceptEULA {
		logger.Warn("Minecraft EULA not accepted, set eula=true in eula.txt before starting the server",
			logger.Fields{"setting": "server.accept_eula"})
	}
	return nil
}

func (p *Pipeline) prePackageHooks(ctx context.Context, b *build) error {
	return b.hooks.Run(ctx, hooks.PrePackage, b.hookContext())
}

func (p *Pipeline) packageBundle(ctx context.Context, b *build) error {
	name := p.cfg.Build.ArchiveName
	if name == "" {
		name = b.pack.Manifest.Slug() + "-server.zip"
	}
	staging := filepath.Join(b.workDir, name)
	if err := p.archives.Create(ctx, b.bundleDir, staging); err != nil {
		return err
	}

	outDir, err := filepath.Abs(p.cfg.Build.OutputDir)
	if err != nil {
		return err
	}
	target := filepath.Join(outDir, name)
	if err := fsutil.Move(staging, target); err != nil {
		return err
	}
	b.result.BundlePath = target
	return nil
}

func (p *Pipeline) publish(ctx context.Context, b *build) error {
	publisher := p.publisher
	if publisher == nil {
		if !p.cfg.Publish.S3.Enabled() {
			logger.Debug("Publishing disabled")
			return nil
		}
		s3, err := publish.NewS3(ctx, p.cfg.Publish.S3)
		if err != nil {
			return err
		}
		publisher = s3
	}

	location, err := publisher.Publish(ctx, b.result.BundlePath)
	if err != nil {
		return err
	}
	b.result.Location = location
	logger.Info("Bundle published", logger.Fields{"location": location})
	return nil
}

// download runs one batch, storing payloads under the bundle dir. It returns
// the number of files written.
func (p *Pipeline) download(ctx context.Context, stepID string, b *build, batch []download.Request) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink := newSinkWriter(b.bundleDir, stepID, p.hooks, cancel)
	coordinator := download.New(b.fetcher, p.coordinatorConfig(), sink)
	err := coordinator.Download(ctx, batch, p.cfg.Download.Concurrency)
	if werr := sink.Err(); werr != nil {
		return sink.Written(), werr
	}
	if err != nil {
		return sink.Written(), downloadError(err)
	}
	return sink.Written(), nil
}

func (b *build) hookContext() hooks.Context {
	return hooks.Context{
		BundleDir:        b.bundleDir,
		PackName:         b.pack.Manifest.Name,
		PackVersion:      b.pack.Manifest.Version,
		MinecraftVersion: b.loader.MinecraftVersion,
		Loader:           b.loader.String(),
	}
}

// downloadError marks batch failures with ErrDownloadFailed, keeping the
// *download.RequestError that names the file and error kind.
func downloadError(err error) error {
	if requestError(err) == nil {
		return err
	}
	return fmt.Errorf("%w: %w", errors.ErrDownloadFailed, err)
}

func requestError(err error) *download.RequestError {
	var re *download.RequestError
	if errors.As(err, &re) {
		return re
	}
	return nil
}
