package app

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"github.com/LeonardoBeccarini/agriassist/internal/services/history"
)

// HistoryClient legge lo storico dal servizio history. Per le query senza filtri,
// in caso di errore restituisce l'ultima risposta valida insieme all'errore.
type HistoryClient struct {
	up *Upstream

	mu       sync.Mutex
	lastGood []history.Entry
}

func NewHistoryClient(up *Upstream) *HistoryClient {
	return &HistoryClient{up: up}
}

func (c *HistoryClient) Recent(ctx context.Context, q history.RecentQuery) ([]history.Entry, error) {
	v := url.Values{}
	v.Set("minutes", strconv.Itoa(q.Minutes))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.Type != "" {
		v.Set("type", q.Type)
	}
	if q.SessionID != "" {
		v.Set("session", q.SessionID)
	}

	unfiltered := q.Type == "" && q.SessionID == ""

	var out []history.Entry
	if err := c.up.GetJSON(ctx, "/history/recent?"+v.Encode(), &out); err != nil {
		if !unfiltered {
			return nil, err
		}
		c.mu.Lock()
		cached := c.lastGood
		c.mu.Unlock()
		return cached, err
	}
	if unfiltered {
		c.mu.Lock()
		c.lastGood = out
		c.mu.Unlock()
	}
	return out, nil
}
