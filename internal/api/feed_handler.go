package api

import (
	"net/http"

	"github.com/snaptrace/snaptrace-api/internal/api/shared"
	"github.com/snaptrace/snaptrace-api/internal/domain"
)

const (
	defaultFeedLimit = 10
	maxFeedLimit     = 100
)

// FeedLister lists published feed items, newest first.
type FeedLister interface {
	ListFeed(limit int) []domain.FeedItem
}

// FeedResponse is returned by GET /v1/feed. NextCursor is always null;
// pagination beyond the first page is not supported.
type FeedResponse struct {
	Items      []domain.FeedItem `json:"items"`
	NextCursor *string           `json:"nextCursor"`
}

// FeedHandler serves the public feed.
type FeedHandler struct {
	feed FeedLister
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(feed FeedLister) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// ListFeed handles GET /v1/feed?limit=N.
func (h *FeedHandler) ListFeed(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultFeedLimit, maxFeedLimit)
	shared.RespondWithJSON(w, r, http.StatusOK, FeedResponse{
		Items: h.feed.ListFeed(limit),
	})
}
