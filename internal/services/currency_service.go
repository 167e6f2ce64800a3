package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"visionsync/backend/internal/currency"
)

// ICurrencyService persists each visitor's display currency choice.
type ICurrencyService interface {
	GetSelection(ctx context.Context, clientID string) (currency.Info, error)
	SetSelection(ctx context.Context, clientID string, code string) (currency.Info, error)
}

// Selections older than this are forgotten and the visitor falls back to
// the base currency.
const currencySelectionTTL = 90 * 24 * time.Hour

// currencyService implements ICurrencyService on Redis.
type currencyService struct {
	rdb *redis.Client
}

// NewCurrencyService creates a new currency selection service.
func NewCurrencyService(rdb *redis.Client) ICurrencyService {
	return &currencyService{rdb: rdb}
}

func selectionKey(clientID string) string {
	return "currency:selection:" + clientID
}

// GetSelection returns the stored display currency for clientID, falling
// back to the base currency when nothing is stored or the stored code is no
// longer supported.
func (s *currencyService) GetSelection(ctx context.Context, clientID string) (currency.Info, error) {
	if clientID == "" {
		return currency.Resolve(""), nil
	}
	code, err := s.rdb.Get(ctx, selectionKey(clientID)).Result()
	if err != nil {
		if err == redis.Nil {
			return currency.Resolve(""), nil
		}
		return currency.Info{}, fmt.Errorf("failed to read currency selection: %w", err)
	}
	return currency.Resolve(code), nil
}

// SetSelection stores the display currency for clientID. Unknown codes are
// rejected.
func (s *currencyService) SetSelection(ctx context.Context, clientID string, code string) (currency.Info, error) {
	if clientID == "" {
		return currency.Info{}, fmt.Errorf("client ID is required")
	}
	info, ok := currency.Get(code)
	if !ok {
		return currency.Info{}, fmt.Errorf("unsupported currency code: %s", code)
	}
	if err := s.rdb.Set(ctx, selectionKey(clientID), info.Code, currencySelectionTTL).Err(); err != nil {
		return currency.Info{}, fmt.Errorf("failed to store currency selection: %w", err)
	}
	return info, nil
}
