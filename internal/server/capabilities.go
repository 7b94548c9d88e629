package server

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/skychatorg/skyplayer/internal/models"
)

// DirectResolver treats a locator as a direct media URL and builds a playable
// item from it. The URL may carry a duration_ms query hint; without one the
// item is indefinite. Real deployments replace it with provider-specific
// resolvers (search, link metadata lookup).
type DirectResolver struct{}

// Resolve validates the locator as a URL and derives a title from its path.
func (DirectResolver) Resolve(_ context.Context, sourceKind, locator string) (models.PlayableItem, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return models.PlayableItem{}, fmt.Errorf("locator %q is not a valid URL", locator)
	}

	title := path.Base(u.Path)
	if title == "" || title == "/" || title == "." {
		title = u.Host
	}
	title = strings.TrimSuffix(title, path.Ext(title))

	var duration int64
	if hint := u.Query().Get("duration_ms"); hint != "" {
		duration, err = strconv.ParseInt(hint, 10, 64)
		if err != nil || duration < 0 {
			return models.PlayableItem{}, fmt.Errorf("locator %q has an invalid duration_ms hint", locator)
		}
	}

	return models.PlayableItem{
		SourceKind: sourceKind,
		SourceID:   locator,
		Title:      title,
		Duration:   duration,
	}, nil
}

// PermissiveAuthorizer lets everyone queue media and manage schedules, and
// grants elevated privilege only to the configured admin identities. It
// stands in until a real rights backend is wired.
type PermissiveAuthorizer struct {
	Admins []string
}

func (a PermissiveAuthorizer) HasElevatedPrivilege(identity string) bool {
	for _, admin := range a.Admins {
		if admin == identity {
			return true
		}
	}
	return false
}

func (PermissiveAuthorizer) CanAddMedia(string) bool       { return true }
func (PermissiveAuthorizer) CanManageSchedule(string) bool { return true }
