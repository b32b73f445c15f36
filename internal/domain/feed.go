package domain

import "time"

// GeoLocation is a place attached to a feed item.
type GeoLocation struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	PlaceName string  `json:"placeName,omitempty"`
}

// FeedItem is the artifact a successfully completed job publishes.
// ID always equals the originating job id.
type FeedItem struct {
	ID        string       `json:"id"`
	ImageURL  string       `json:"imageUrl"`
	Text      string       `json:"text"`
	Timestamp time.Time    `json:"timestamp"`
	Location  *GeoLocation `json:"location,omitempty"`
}

// NewFeedItem builds the feed item for a job that finished both stages.
func NewFeedItem(jobID, imageURL, text string) FeedItem {
	return FeedItem{
		ID:        jobID,
		ImageURL:  imageURL,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// NewerThan orders feed items by timestamp descending, falling back to id so
// that items sharing a timestamp still sort deterministically.
func (f FeedItem) NewerThan(other FeedItem) bool {
	if !f.Timestamp.Equal(other.Timestamp) {
		return f.Timestamp.After(other.Timestamp)
	}
	return f.ID < other.ID
}
