package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/sirchcoins/internal/client/client"
	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/common"
)

// DefaultHistoryLimit is the number of rows shown when the caller asks for none.
const DefaultHistoryLimit = 20

// HistoryService lists wallet transactions of the signed-in user.
type HistoryService interface {
	Recent(ctx context.Context, limit int) ([]models.Transaction, error)
}

type historyService struct {
	client   client.Client
	sessions SessionReader
}

func NewHistoryService(c client.Client, sessions SessionReader) HistoryService {
	return &historyService{client: c, sessions: sessions}
}

func (h *historyService) Recent(ctx context.Context, limit int) ([]models.Transaction, error) {
	s := h.sessions.Session()
	if s == nil {
		return nil, common.ErrNotSignedIn
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	txs, err := h.client.ListTransactions(ctx, s.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
