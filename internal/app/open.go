package service

import (
	"context"

	repository "github.com/wintality/athlete-testing/internal/adapters/repository"
	"github.com/wintality/athlete-testing/internal/config"
	"github.com/wintality/athlete-testing/internal/domain/errs"
	"github.com/wintality/athlete-testing/pkg/logger"
)

// Open builds a Service from cfg, opening the configured store.
func Open(ctx context.Context, cfg *config.Config, l logger.Logger) (*Service, error) {
	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, errs.WrapKind("service.open", errs.ErrInternal, err)
	}
	return New(
		WithStore(store, cfg.StoreDriver),
		WithLogger(l),
		WithRankingSize(cfg.RankingSize),
	), nil
}
