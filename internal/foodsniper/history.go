package foodsniper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hairguard/hairguard/internal/docstore"
	"github.com/hairguard/hairguard/internal/models"
)

// HistoryLimit is how many past requests are listed.
const HistoryLimit = 10

// History reads a user's past food requests, newest first.
type History struct {
	store docstore.Store
	now   func() time.Time
}

// NewHistory returns a reader over store.
func NewHistory(store docstore.Store) *History {
	return &History{store: store, now: time.Now}
}

// Fetch returns at most HistoryLimit requests ordered by createdAt descending.
// Documents of either schema version are accepted.
func (h *History) Fetch(ctx context.Context, uid string) ([]models.FoodRequest, error) {
	snaps, err := h.store.Query(ctx, docstore.UserItems(models.CollectionFoodRequests, uid),
		docstore.Query{OrderBy: "createdAt", Direction: docstore.Desc, Limit: HistoryLimit})
	if err != nil {
		return nil, fmt.Errorf("query food requests: %w", err)
	}
	now := h.now()
	out := make([]models.FoodRequest, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, models.DecodeFoodRequest(s, now))
	}
	return out, nil
}

// FormatHistory renders the history list.
func FormatHistory(entries []models.FoodRequest) string {
	if len(entries) == 0 {
		return msgNoHistory + "\n"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s  %s\n", e.CreatedAt.Local().Format("2006/01/02 15:04"), e.Query)
		fmt.Fprintf(&b, "  %s\n", strings.Join(e.ShoppingList, " / "))
	}
	return b.String()
}
