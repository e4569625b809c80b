package api

import (
	"context"

	"github.com/starford/notelinker/internal/linker"
	"github.com/starford/notelinker/internal/linkservice"
	"github.com/starford/notelinker/internal/vault"
)

// Service is the subset of *linkservice.Service used by the handlers.
type Service interface {
	Load(ctx context.Context) (*linkservice.Snapshot, error)
	FindLinks(ctx context.Context, path string) ([]linker.Link, error)
	FindAll(ctx context.Context) (linkservice.BatchResult, error)
	Invalid(ctx context.Context) ([]vault.Invalid, error)
	Mentions(ctx context.Context, target string) ([]linker.Link, error)
	Preview(ctx context.Context, path string, l linker.Link) (string, error)
	Apply(ctx context.Context, path string, links []linker.Link, ifMatch string) (*linkservice.ApplyResult, error)
}

var _ Service = (*linkservice.Service)(nil)
