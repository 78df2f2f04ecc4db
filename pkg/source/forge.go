package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/glorpus-work/mcbundle/internal/logger"
	"github.com/glorpus-work/mcbundle/pkg/download"
	"github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/glorpus-work/mcbundle/pkg/fetch"
	"github.com/glorpus-work/mcbundle/pkg/hash"
	"github.com/glorpus-work/mcbundle/pkg/manifest"
)

const (
	installProfileName = "install_profile.json"
	defaultVersionJSON = "version.json"
)

// Forge resolves the Forge installer and the libraries it needs.
type Forge struct {
	fetcher  Fetcher
	archives ArchiveReader
	mavenURL string
}

// NewForge creates a resolver against the Maven repository at mavenURL.
func NewForge(fetcher Fetcher, archives ArchiveReader, mavenURL string) *Forge {
	return &Forge{
		fetcher:  fetcher,
		archives: archives,
		mavenURL: strings.TrimRight(mavenURL, "/"),
	}
}

// InstallerSink is the bundle path of the installer for loader.
func InstallerSink(loader manifest.Loader) string {
	return fmt.Sprintf("forge-%s-installer.jar", loader.FullVersion())
}

// InstallerURL is the Maven URL of the installer for loader.
func (f *Forge) InstallerURL(loader manifest.Loader) string {
	full := loader.FullVersion()
	return fmt.Sprintf("%s/net/minecraftforge/forge/%s/forge-%s-installer.jar", f.mavenURL, full, full)
}

// InstallerRequest returns the installer request. The sha1 is read from the
// sibling .sha1 file; when Maven has none (404) the request is unconstrained.
func (f *Forge) InstallerRequest(ctx context.Context, loader manifest.Loader) (download.Request, error) {
	if loader.Kind != manifest.LoaderForge {
		return download.Request{}, errors.ErrUnsupportedLoaderWithName(loader.String())
	}

	installerURL := f.InstallerURL(loader)
	req := download.Request{URL: installerURL, Sink: InstallerSink(loader)}

	body, err := f.fetcher.Fetch(ctx, installerURL+".sha1", nil)
	switch {
	case err == nil:
		sum := strings.TrimSpace(string(body))
		if fields := strings.Fields(sum); len(fields) > 0 {
			sum = fields[0]
		}
		req.Constraints = []hash.Constraint{hash.NewConstraint(hash.SHA1, sum)}
	case isNotFound(err):
		logger.Warn("No checksum published for installer", logger.Fields{"url": installerURL})
	default:
		return download.Request{}, errors.Wrapf(err, "failed to fetch checksum for %s", loader)
	}
	return req, nil
}

type installProfile struct {
	JSON      string    `json:"json"`
	Libraries []library `json:"libraries"`
}

type versionDocument struct {
	Libraries []library `json:"libraries"`
}

type library struct {
	Name      string `json:"name"`
	Downloads struct {
		Artifact *artifact `json:"artifact"`
	} `json:"downloads"`
}

type artifact struct {
	Path string `json:"path"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
}

// LibraryRequests reads install_profile.json and the version document from
// the installer jar at installerPath and returns one request per downloadable
// library, stored under libraries/. Artifacts without a URL are produced by the
// installer itself and are skipped. Legacy installers without a libraries
// list yield no requests.
func (f *Forge) LibraryRequests(ctx context.Context, installerPath string) ([]download.Request, error) {
	data, err := f.archives.ReadFile(ctx, installerPath, installProfileName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", installProfileName)
	}
	var profile installProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, errors.Wrapf(errors.ErrManifestParse, "%s: %v", installProfileName, err)
	}

	libraries := profile.Libraries

	versionName := strings.TrimPrefix(profile.JSON, "/")
	if versionName == "" {
		versionName = defaultVersionJSON
	}
	data, err = f.archives.ReadFile(ctx, installerPath, versionName)
	switch {
	case err == nil:
		var doc versionDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrapf(errors.ErrManifestParse, "%s: %v", versionName, err)
		}
		libraries = append(libraries, doc.Libraries...)
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, errors.Wrapf(err, "failed to read %s", versionName)
	}

	seen := make(map[string]bool, len(libraries))
	requests := make([]download.Request, 0, len(libraries))
	for _, lib := range libraries {
		a := lib.Downloads.Artifact
		if a == nil || a.URL == "" || a.Path == "" {
			continue
		}
		clean := path.Clean(a.Path)
		if clean == "." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
			return nil, errors.Wrapf(errors.ErrInvalidSink, "library %s path %q", lib.Name, a.Path)
		}
		if seen[clean] {
			continue
		}
		seen[clean] = true

		req := download.Request{URL: a.URL, Sink: "libraries/" + clean}
		if a.SHA1 != "" {
			req.Constraints = []hash.Constraint{hash.NewConstraint(hash.SHA1, a.SHA1)}
		}
		requests = append(requests, req)
	}

	logger.Debug("Resolved forge libraries", logger.Fields{"count": len(requests)})
	return requests, nil
}

func isNotFound(err error) bool {
	var te *fetch.TransportError
	return errors.As(err, &te) && te.StatusCode == http.StatusNotFound
}
