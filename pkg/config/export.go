package config

import (
	"context"
	"fmt"

	"github.com/hdcn/ledenportaal/pkg/exports"
	"github.com/hdcn/ledenportaal/pkg/parameters"
	"github.com/hdcn/ledenportaal/pkg/storage"
)

// NewExportSink selects where export artifacts land. The S3 key prefix
// is a portal parameter so the secretariat can repoint it without a
// deploy; params may be nil to use the default prefix.
func NewExportSink(ctx context.Context, cfg *Config, params parameters.Store) (exports.Sink, error) {
	switch cfg.Export.Sink {
	case "s3":
		s3Client, err := storage.NewS3Client(cfg.Storage)
		if err != nil {
			return nil, err
		}
		prefix := "exports"
		if params != nil {
			if param, err := params.Get(ctx, parameters.CategoryExport, "s3_prefix"); err == nil && param.Value != "" {
				prefix = param.Value
			}
		}
		return exports.NewS3Sink(s3Client, prefix), nil
	case "filesystem":
		return exports.NewFileSink(cfg.Storage.ExportRoot)
	default:
		return nil, fmt.Errorf("unknown export sink %q", cfg.Export.Sink)
	}
}
