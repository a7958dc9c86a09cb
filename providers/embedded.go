package providers

import (
	"context"

	"github.com/scoboslor/player2/models"
)

// EmbeddedProvider serves LRC text the player ships in its own metadata.
type EmbeddedProvider struct{}

func NewEmbeddedProvider() *EmbeddedProvider {
	return &EmbeddedProvider{}
}

func (*EmbeddedProvider) ID() string {
	return EmbeddedProviderID
}

func (*EmbeddedProvider) Lookup(_ context.Context, t *models.Track) (string, error) {
	if t.Lyrics == "" {
		return "", ErrNoLyrics
	}
	return t.Lyrics, nil
}
