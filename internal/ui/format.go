// ABOUTME: Terminal UI formatting utilities
// ABOUTME: Provides human-readable output for friends, requests, and alerts

package ui

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/fightbackff-oss/trackmate/internal/models"
)

// FormatFriend formats a friend row for terminal display.
func FormatFriend(f *models.UserPresence) string {
	if f == nil {
		return color.New(color.Faint).Sprint("(invalid friend)")
	}
	name := fmt.Sprintf("%s (@%s)", color.GreenString(f.Name), f.Username)
	status := FormatStatus(f.Status)

	if f.Location == nil {
		return fmt.Sprintf("%s %s - %s",
			name, status,
			color.New(color.Faint).Sprint("no location"))
	}
	coords := fmt.Sprintf("(%.4f, %.4f)", f.Location.Lat, f.Location.Lng)
	return fmt.Sprintf("%s %s %s - %s %s",
		name, status,
		color.New(color.Faint).Sprint(coords),
		color.New(color.Faint).Sprint(FormatRelativeTime(f.LastSeen)),
		FormatBattery(f.BatteryLevel))
}

// FormatStatus renders a presence status with its conventional color.
func FormatStatus(s models.Status) string {
	switch s {
	case models.StatusOnline:
		return color.GreenString("online")
	case models.StatusMoving:
		return color.CyanString("moving")
	case models.StatusGhost:
		return color.MagentaString("ghost")
	default:
		return color.New(color.Faint).Sprint("offline")
	}
}

// FormatBattery renders a battery percentage, empty when unknown.
func FormatBattery(level int) string {
	if level < 0 {
		return ""
	}
	str := fmt.Sprintf("%d%%", level)
	if level <= 15 {
		return color.RedString(str)
	}
	if level <= 40 {
		return color.YellowString(str)
	}
	return color.New(color.Faint).Sprint(str)
}

// FormatRequest formats a pending friend request for terminal display.
func FormatRequest(r *models.FriendRequest) string {
	if r == nil {
		return color.New(color.Faint).Sprint("(invalid request)")
	}
	from := "unknown"
	if r.Sender != nil {
		from = fmt.Sprintf("%s (@%s)", r.Sender.Name, r.Sender.Username)
	}
	return fmt.Sprintf("%s %s - %s",
		color.CyanString(from),
		color.New(color.Faint).Sprint(shortID(r.ID.String())),
		color.New(color.Faint).Sprint(FormatRelativeTime(r.CreatedAt)))
}

// FormatAlert formats an alert for terminal display. SOS alerts render in
// red regardless of read state.
func FormatAlert(a *models.Alert) string {
	if a == nil {
		return color.New(color.Faint).Sprint("(invalid alert)")
	}
	title := a.Title
	if a.Priority == models.PriorityHigh {
		title = color.New(color.FgRed, color.Bold).Sprint(title)
	} else if a.IsRead {
		title = color.New(color.Faint).Sprint(title)
	}
	marker := " "
	if !a.IsRead {
		marker = color.YellowString("*")
	}
	return fmt.Sprintf("%s %s %s - %s",
		marker, title, a.Message,
		color.New(color.Faint).Sprint(FormatRelativeTime(a.Timestamp)))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// FormatRelativeTime formats a time as relative to now.
func FormatRelativeTime(t time.Time) string {
	diff := time.Since(t)

	// Handle future times (clock skew, bad data)
	if diff < 0 {
		return color.YellowString("in the future")
	}

	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	}
	if diff < 24*time.Hour {
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(diff.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
