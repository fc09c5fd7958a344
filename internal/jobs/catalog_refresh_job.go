package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CatalogRefreshJobName is the name of the rate catalog snapshot refresh
const CatalogRefreshJobName = "catalog_refresh"

// Refresher reloads an in-memory rate catalog
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CatalogRefreshJob reloads the rate catalog snapshot. A failed reload
// keeps serving the previous snapshot.
type CatalogRefreshJob struct {
	catalog Refresher
	logger  *zap.Logger
}

func NewCatalogRefreshJob(catalog Refresher, logger *zap.Logger) *CatalogRefreshJob {
	return &CatalogRefreshJob{catalog: catalog, logger: logger}
}

func (j *CatalogRefreshJob) Name() string { return CatalogRefreshJobName }

func (j *CatalogRefreshJob) Run(ctx context.Context) error {
	if err := j.catalog.Refresh(ctx); err != nil {
		j.logger.Warn("Rate catalog refresh failed, keeping previous snapshot", zap.Error(err))
		return fmt.Errorf("refresh rate catalog: %w", err)
	}
	return nil
}
