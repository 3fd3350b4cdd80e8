// Package backend opens the filestore.Store named by a filestore.Config.
package backend

import (
	"context"

	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/filestore"
	"github.com/koustreak/pgdescribe/internal/filestore/local"
	"github.com/koustreak/pgdescribe/internal/filestore/minio"
)

// Open returns the store for cfg.Provider.
func Open(ctx context.Context, cfg *filestore.Config) (filestore.Store, error) {
	if cfg == nil {
		cfg = filestore.DefaultConfig()
	}
	switch cfg.Provider {
	case filestore.ProviderLocal, "":
		return local.New(cfg)
	case filestore.ProviderMinIO:
		return minio.New(ctx, cfg)
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown store provider %q", cfg.Provider)
	}
}
