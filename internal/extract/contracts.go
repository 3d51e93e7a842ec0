package extract

import (
	"context"

	"github.com/facturapass/password-assigner/constants"
	"github.com/facturapass/password-assigner/internal/entity"
)

// Document is one uploaded source document plus its resolved configuration.
type Document struct {
	Filename  string
	MediaType string
	Content   []byte

	// ProfileID names the SourceProfile bound to tabular documents.
	ProfileID string
	// Profile is resolved by the orchestrator before dispatch.
	Profile *entity.SourceProfile
}

// Strategy is one extraction method. A nil or empty result with a nil error
// means the strategy declines the document and the orchestrator should try
// the next one in the chain.
type Strategy interface {
	Name() constants.SourceStrategy
	TryExtract(ctx context.Context, doc Document) ([]entity.ExtractedPassword, error)
}

// ProfileResolver resolves a template identifier into a SourceProfile.
type ProfileResolver interface {
	Resolve(ctx context.Context, id string) (*entity.SourceProfile, error)
}
