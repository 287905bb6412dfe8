package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nppfbt/ndi-verifier/internal/cache"
	"github.com/nppfbt/ndi-verifier/internal/log"
)

// DefaultQRBodyTTL is the default time to live for a QR code body. A proof
// request is short lived, there is no point keeping its body around longer.
const DefaultQRBodyTTL = 1 * time.Hour

// ErrQRCodeLinkNotFound is the error returned when a QR code link is not found in the QR storage
var ErrQRCodeLinkNotFound = errors.New("qr code link not found")

// QrStoreService implements the ports.QrStoreService interface.
// It stores the proof request body under a short id so the UI renders a
// compact url instead of embedding the whole payload in the QR code.
type QrStoreService struct {
	mx    sync.Mutex
	store cache.Cache
}

type qrPayload struct {
	QrCode string `json:"qr_code"`
}

// NewQrStoreService creates a new QrStoreService instance.
func NewQrStoreService(store cache.Cache) *QrStoreService {
	return &QrStoreService{
		store: store,
	}
}

// Find retrieves the body of a QR code. Not finding an item is considered an error
func (s *QrStoreService) Find(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var raw qrPayload
	if found := s.store.Get(ctx, s.key(id), &raw); !found {
		log.Error(ctx, "qr code body not found. Tip: start the verification again", "id", id.String())
		return nil, ErrQRCodeLinkNotFound
	}
	return []byte(raw.QrCode), nil
}

// Store stores the body of a QR code, creating a new unique ID for it and returning it.
func (s *QrStoreService) Store(ctx context.Context, qrCode []byte, ttl time.Duration) (uuid.UUID, error) {
	id := s.newID(ctx)
	if err := s.store.Set(ctx, s.key(id), qrPayload{QrCode: string(qrCode)}, ttl); err != nil {
		log.Error(ctx, "error storing qr code body", "id", id.String(), "err", err)
		return uuid.Nil, err
	}
	return id, nil
}

// ToURL constructs the url that will be used to get the body of a QR code.
func (s *QrStoreService) ToURL(hostURL string, id uuid.UUID) string {
	return fmt.Sprintf("%s/v1/qr-store?id=%s", hostURL, id.String())
}

func (s *QrStoreService) key(id uuid.UUID) string {
	return "verifier-node:qr-code:" + id.String()
}

// newID generates a new unique ID for a QR code.
func (s *QrStoreService) newID(ctx context.Context) uuid.UUID {
	s.mx.Lock()
	defer s.mx.Unlock()
	for {
		id := uuid.New()
		if !s.store.Exists(ctx, s.key(id)) {
			return id
		}
	}
}
