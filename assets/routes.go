package assets

import (
	"context"

	"github.com/gin-gonic/gin"

	"holodeck/cache"
	"holodeck/config"
	"holodeck/logging"
)

// RegisterRoutes opens the database, upload storage and optional list cache
// described by cfg and mounts the Asset Store routes on router.
func RegisterRoutes(ctx context.Context, router gin.IRouter, cfg config.Server, log *logging.Logger) (*Module, error) {
	log = logging.OrNop(log)

	db, err := OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	var blobs BlobStore
	if cfg.Minio.Enabled() {
		objects, err := NewObjectStorage(ctx, cfg.Minio)
		if err != nil {
			return nil, err
		}
		blobs = objects
		log.Info("using object storage", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)
	} else {
		local, err := NewLocalStorage(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		blobs = local
		log.Info("using local storage", "dir", local.BaseDir())
	}

	var listCache ListCache
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("asset list cache disabled", "error", err)
		} else {
			listCache = cache.NewAssetListCache(client)
		}
	}

	module, err := NewModule(db, blobs, listCache, log)
	if err != nil {
		return nil, err
	}
	module.Register(router)
	return module, nil
}
