package services

import (
  "context"

  "github.com/chaintrack/chaintrack-backend/internal/clients/gcp"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

// NewGCSStoreFactory is the production ObjectStoreFactory.
func NewGCSStoreFactory(log *logger.Logger) ObjectStoreFactory {
  return func(ctx context.Context, cfg *types.StorageConfig) (gcp.ObjectStore, error) {
    return gcp.NewBucketStore(ctx, log, cfg)
  }
}
