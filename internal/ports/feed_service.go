package ports

import (
	"context"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
)

// FeedService - операции, доступные транспортному слою.
type FeedService interface {
	GoodsPage(ctx context.Context, p domain.Partition, cursor int64, size int) (domain.Page[domain.GoodsCard], error)
	UsersPage(ctx context.Context, cursor int64, size int) (domain.Page[domain.UserCard], error)

	CollectCount(ctx context.Context, goodsID int64) (int64, error)
	ForceSyncCounter(ctx context.Context, goodsID int64) (domain.SyncOutcome, error)
	TriggerScheduledReconciliation(ctx context.Context) (domain.PassReport, error)
	RebuildPartition(ctx context.Context, p domain.Partition) error
}
