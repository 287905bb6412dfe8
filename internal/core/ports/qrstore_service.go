package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QrStoreService stores and retrieves the body of QR codes so the UI can
// render a short url instead of embedding the full proof request payload.
type QrStoreService interface {
	Find(ctx context.Context, id uuid.UUID) ([]byte, error)
	Store(ctx context.Context, qrCode []byte, ttl time.Duration) (uuid.UUID, error)
	ToURL(hostURL string, id uuid.UUID) string
}
