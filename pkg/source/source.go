//go:generate mockgen -destination=./mocks/source.go . Fetcher,ArchiveReader

// Package source resolves the upstream files a server bundle is made of into
// download requests: the vanilla server jar from Mojang, the Forge installer and
// its libraries from the Forge Maven, and mod files from CurseForge.
package source

import (
	"context"
)

// Fetcher fetches single documents with retries. *fetch.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, onRetry func(attempt int, err error)) ([]byte, error)
	FetchJSON(ctx context.Context, rawURL string, v any) error
}

// ArchiveReader reads single entries from a zip archive.
// *archive.Manager implements it.
type ArchiveReader interface {
	ReadFile(ctx context.Context, archivePath, name string) ([]byte, error)
}
