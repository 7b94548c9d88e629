package playback

import (
	"context"

	"github.com/skychatorg/skyplayer/internal/models"
)

// ItemResolver turns a user-supplied locator (link, search pick) into a
// concrete playable item. Implemented by media-provider integrations outside
// this package.
type ItemResolver interface {
	Resolve(ctx context.Context, sourceKind, locator string) (models.PlayableItem, error)
}

// Authorizer answers permission questions about a viewer identity.
type Authorizer interface {
	HasElevatedPrivilege(identity string) bool
	CanAddMedia(identity string) bool
	CanManageSchedule(identity string) bool
}

// Presence reports whether a viewer identity currently has at least one live
// connection.
type Presence interface {
	Connected(identity string) bool
}

// Broadcaster delivers named events to one viewer, a set of viewers, or every
// connected party.
type Broadcaster interface {
	ToViewer(identity, event string, payload any)
	ToViewers(identities []string, event string, payload any)
	ToAll(event string, payload any)
}

// SnapshotStore persists and restores the sanitized channel set.
type SnapshotStore interface {
	Save(ctx context.Context, snapshots []models.ChannelSnapshot) error
	Load(ctx context.Context) ([]models.ChannelSnapshot, error)
}

// Deps bundles the capabilities a channel needs to do its work. Any field may
// be nil, in which case the corresponding effect is skipped.
type Deps struct {
	Broadcaster Broadcaster
	Presence    Presence
	Auth        Authorizer
}
