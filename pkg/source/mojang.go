package source

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/glorpus-work/mcbundle/internal/logger"
	"github.com/glorpus-work/mcbundle/pkg/download"
	"github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/glorpus-work/mcbundle/pkg/hash"
)

// Mojang resolves vanilla server jars through the launcher version manifest.
type Mojang struct {
	fetcher     Fetcher
	manifestURL string
}

// NewMojang creates a resolver reading the version manifest at manifestURL.
func NewMojang(fetcher Fetcher, manifestURL string) *Mojang {
	return &Mojang{fetcher: fetcher, manifestURL: manifestURL}
}

type versionManifest struct {
	Versions []versionRef `json:"versions"`
}

type versionRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1"`
}

type versionInfo struct {
	Downloads struct {
		Server *downloadInfo `json:"server"`
	} `json:"downloads"`
}

type downloadInfo struct {
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// ServerRequest returns the request for the dedicated server jar of
// mcVersion, stored at sink. The version document is verified against the
// manifest's sha1 when one is published.
func (m *Mojang) ServerRequest(ctx context.Context, mcVersion, sink string) (download.Request, error) {
	var manifest versionManifest
	if err := m.fetcher.FetchJSON(ctx, m.manifestURL, &manifest); err != nil {
		return download.Request{}, errors.Wrap(err, "failed to fetch version manifest")
	}

	var ref *versionRef
	for i := range manifest.Versions {
		if manifest.Versions[i].ID == mcVersion {
			ref = &manifest.Versions[i]
			break
		}
	}
	if ref == nil {
		return download.Request{}, errors.Wrapf(errors.ErrUnknownGameVersion, "%s", mcVersion)
	}

	body, err := m.fetcher.Fetch(ctx, ref.URL, nil)
	if err != nil {
		return download.Request{}, errors.Wrapf(err, "failed to fetch version %s", mcVersion)
	}
	if ref.SHA1 != "" {
		if err := hash.Verify(body, hash.NewConstraint(hash.SHA1, ref.SHA1)); err != nil {
			return download.Request{}, errors.Wrapf(err, "version document for %s", mcVersion)
		}
	}

	var info versionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return download.Request{}, fmt.Errorf("failed to decode version %s: %w", mcVersion, err)
	}
	server := info.Downloads.Server
	if server == nil || server.URL == "" {
		return download.Request{}, errors.Wrapf(errors.ErrServerJarUnavailable, "%s", mcVersion)
	}

	logger.Debug("Resolved server jar", logger.Fields{"version": mcVersion, "url": server.URL, "size": server.Size})

	req := download.Request{URL: server.URL, Sink: sink}
	if server.SHA1 != "" {
		req.Constraints = []hash.Constraint{hash.NewConstraint(hash.SHA1, server.SHA1)}
	}
	return req, nil
}

// DefaultServerJarSink is where older Forge installers look for the vanilla jar.
func DefaultServerJarSink(mcVersion string) string {
	return fmt.Sprintf("minecraft_server.%s.jar", mcVersion)
}

// LibraryServerJarSink is where Forge 1.17+ installers look for the vanilla jar.
func LibraryServerJarSink(mcVersion string) string {
	return fmt.Sprintf("libraries/net/minecraft/server/%s/server-%s.jar", mcVersion, mcVersion)
}
