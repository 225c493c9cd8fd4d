package cache

import (
	"context"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

// MetadataCache is a read-through cache for service catalog rows. It is a pure
// performance optimization: stock decisions at order time always re-read the
// database, so a stale entry can never oversell.
type MetadataCache interface {
	Get(ctx context.Context, serviceID int) (*models.Service, bool)
	Set(ctx context.Context, serviceID int, svc *models.Service)
	Delete(ctx context.Context, serviceID int)
}
