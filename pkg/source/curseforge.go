package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/glorpus-work/mcbundle/internal/logger"
	"github.com/glorpus-work/mcbundle/pkg/auth"
	"github.com/glorpus-work/mcbundle/pkg/download"
	"github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/glorpus-work/mcbundle/pkg/hash"
	"github.com/glorpus-work/mcbundle/pkg/manifest"
)

// APIKeyHeader carries the CurseForge API key.
const APIKeyHeader = "x-api-key"

// APIKey returns the authenticator for CurseForge API requests.
func APIKey(key string) auth.APIKey {
	return auth.APIKey{Header: APIKeyHeader, Key: key}
}

// EdgeURL is the CDN used when the API withholds a download URL.
const EdgeURL = "https://edge.forgecdn.net/files"

// CurseForge hash algorithm ids.
const (
	cfAlgoSHA1 = 1
	cfAlgoMD5  = 2
)

// CurseForge resolves manifest file entries into mod download requests. File
// metadata is itself fetched as a download batch so lookups share the
// coordinator's concurrency bound and retry handling.
type CurseForge struct {
	fetcher   download.Fetcher
	cfg       download.Config
	apiURL    string
	observers []download.Observer
}

// NewCurseForge creates a resolver. fetcher must authenticate with APIKey.
// observers receive the metadata batch events.
func NewCurseForge(fetcher download.Fetcher, cfg download.Config, apiURL string, observers ...download.Observer) *CurseForge {
	return &CurseForge{
		fetcher:   fetcher,
		cfg:       cfg,
		apiURL:    strings.TrimRight(apiURL, "/"),
		observers: observers,
	}
}

type fileResponse struct {
	Data fileData `json:"data"`
}

type fileData struct {
	ID              int        `json:"id"`
	ModID           int        `json:"modId"`
	DisplayName     string     `json:"displayName"`
	FileName        string     `json:"fileName"`
	DownloadURL     *string    `json:"downloadUrl"`
	FileFingerprint int64      `json:"fileFingerprint"`
	Hashes          []fileHash `json:"hashes"`
}

type fileHash struct {
	Value string `json:"value"`
	Algo  int    `json:"algo"`
}

// FileURL is the metadata endpoint for one manifest file.
func (c *CurseForge) FileURL(f manifest.File) string {
	return fmt.Sprintf("%s/v1/mods/%d/files/%d", c.apiURL, f.ProjectID, f.FileID)
}

// ModRequests looks up every file and returns requests with sink
// mods/<fileName>, in manifest order.
func (c *CurseForge) ModRequests(ctx context.Context, files []manifest.File) ([]download.Request, error) {
	if len(files) == 0 {
		return nil, nil
	}

	batch := make([]download.Request, len(files))
	for i, f := range files {
		batch[i] = download.Request{URL: c.FileURL(f), Sink: f.String()}
	}

	var mu sync.Mutex
	responses := make(map[string][]byte, len(files))
	collect := download.ObserverFunc(func(e download.Event) {
		if e.Type != download.EventComplete {
			return
		}
		mu.Lock()
		responses[e.Request.Sink] = e.Payload
		mu.Unlock()
	})

	observers := append([]download.Observer{collect}, c.observers...)
	coordinator := download.New(c.fetcher, c.cfg, observers...)
	if err := coordinator.Download(ctx, batch, c.cfg.Concurrency); err != nil {
		return nil, errors.Wrap(err, "failed to look up mod files")
	}

	requests := make([]download.Request, 0, len(files))
	seenNames := make(map[string]string, len(files))
	for _, f := range files {
		var resp fileResponse
		if err := json.Unmarshal(responses[f.String()], &resp); err != nil {
			return nil, errors.Wrapf(errors.ErrManifestParse, "file %s: %v", f, err)
		}
		req, err := modRequest(resp.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "file %s", f)
		}
		if other, dup := seenNames[req.Sink]; dup {
			logger.Warn("Two manifest entries share a file name, keeping the first",
				logger.Fields{"sink": req.Sink, "kept": other, "dropped": f.String()})
			continue
		}
		seenNames[req.Sink] = f.String()
		requests = append(requests, req)
	}
	return requests, nil
}

func modRequest(d fileData) (download.Request, error) {
	name := d.FileName
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return download.Request{}, errors.Wrapf(errors.ErrInvalidSink, "file name %q", name)
	}

	rawURL := ""
	if d.DownloadURL != nil {
		rawURL = *d.DownloadURL
	}
	if rawURL == "" {
		rawURL = edgeURL(d.ID, name)
		logger.Debug("Using CDN fallback", logger.Fields{"file": name, "url": rawURL})
	}

	req := download.Request{URL: rawURL, Sink: "mods/" + name}

	var sha1s, md5s []string
	for _, h := range d.Hashes {
		switch h.Algo {
		case cfAlgoSHA1:
			sha1s = append(sha1s, h.Value)
		case cfAlgoMD5:
			md5s = append(md5s, h.Value)
		}
	}
	if len(sha1s) > 0 {
		req.Constraints = append(req.Constraints, hash.NewConstraint(hash.SHA1, sha1s...))
	}
	if len(md5s) > 0 {
		req.Constraints = append(req.Constraints, hash.NewConstraint(hash.MD5, md5s...))
	}
	if d.FileFingerprint != 0 {
		req.Constraints = append(req.Constraints,
			hash.NewConstraint(hash.Murmur2, strconv.FormatInt(d.FileFingerprint, 10)))
	}
	return req, nil
}

// edgeURL builds https://edge.forgecdn.net/files/<id/1000>/<id%1000>/<name>.
func edgeURL(fileID int, fileName string) string {
	return fmt.Sprintf("%s/%d/%d/%s", EdgeURL, fileID/1000, fileID%1000, url.PathEscape(fileName))
}
