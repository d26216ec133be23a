package identity

import (
	"context"
	"errors"

	"github.com/orgball2608/fary-stories/internal/domain"
)

// ErrNotConfigured is returned by lookups that cannot degrade to a partial
// answer when no API key is set.
var ErrNotConfigured = errors.New("identity provider not configured")

//go:generate go run go.uber.org/mock/mockgen -source=identity.go -destination=mocks/mock.go

// Client resolves Farcaster ids to public profiles. Unknown fids are simply
// absent from the result.
type Client interface {
	LookupProfiles(ctx context.Context, fids []int64) (map[int64]domain.Profile, error)
	// Following lists the accounts fid follows, with their primary wallets.
	Following(ctx context.Context, fid int64) ([]domain.Profile, error)
}
