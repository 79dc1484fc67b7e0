// ABOUTME: Read-side projections over the snapshot for display surfaces
// ABOUTME: Pure functions; no locking, callers pass cloned snapshots

package view

import (
	"strings"

	"github.com/fightbackff-oss/trackmate/internal/mapview"
	"github.com/fightbackff-oss/trackmate/internal/models"
)

// FilterFriends returns the friends whose name or username contains query,
// case-insensitively. An empty query returns the full slice.
func FilterFriends(friends []models.UserPresence, query string) []models.UserPresence {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return friends
	}
	var out []models.UserPresence
	for _, f := range friends {
		if strings.Contains(strings.ToLower(f.Name), query) ||
			strings.Contains(strings.ToLower(f.Username), query) {
			out = append(out, f)
		}
	}
	return out
}

// UnreadCount is the badge count: unread alerts plus pending requests.
func UnreadCount(snap models.Snapshot) int {
	count := len(snap.PendingRequests)
	for _, a := range snap.Alerts {
		if !a.IsRead {
			count++
		}
	}
	return count
}

// Markers projects the snapshot onto map markers. Only entries with a known
// location produce a marker; the local user's marker is flagged so surfaces
// can style it apart.
func Markers(snap models.Snapshot) []mapview.Marker {
	var out []mapview.Marker
	if snap.Self != nil && snap.Self.Location != nil {
		out = append(out, mapview.Marker{
			ID:     snap.Self.ID,
			Label:  snap.Self.Name,
			Lat:    snap.Self.Location.Lat,
			Lng:    snap.Self.Location.Lng,
			Status: snap.Self.Status,
			IsSelf: true,
		})
	}
	for _, f := range snap.Friends {
		if f.Location == nil {
			continue
		}
		out = append(out, mapview.Marker{
			ID:     f.ID,
			Label:  f.Name,
			Lat:    f.Location.Lat,
			Lng:    f.Location.Lng,
			Status: f.Status,
		})
	}
	return out
}
