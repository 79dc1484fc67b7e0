// ABOUTME: MCP tool definitions and handlers
// ABOUTME: Read-only queries over friends, requests, alerts, and own location

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fightbackff-oss/trackmate/internal/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	s.registerListFriendsTool()
	s.registerLocateFriendTool()
	s.registerPendingRequestsTool()
	s.registerRecentAlertsTool()
	s.registerMyLocationTool()
}

// FriendOutput is one friend row in tool output.
type FriendOutput struct {
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	BatteryLevel int       `json:"battery_level"`
	LastSeen     time.Time `json:"last_seen"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
}

func friendOutput(f models.UserPresence) FriendOutput {
	out := FriendOutput{
		Username:     f.Username,
		Name:         f.Name,
		Status:       string(f.Status),
		BatteryLevel: f.BatteryLevel,
		LastSeen:     f.LastSeen,
	}
	if f.Location != nil {
		out.Latitude = &f.Location.Lat
		out.Longitude = &f.Location.Lng
	}
	return out
}

func textResult(v interface{}) *mcp.CallToolResult {
	jsonBytes, _ := json.MarshalIndent(v, "", "  ") //nolint:errchkjson // output is always serializable
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(jsonBytes)}},
	}
}

// ListFriendsInput defines input for the list_friends tool.
type ListFriendsInput struct {
	Query *string `json:"query,omitempty"`
}

// ListFriendsOutput defines output for the list_friends tool.
type ListFriendsOutput struct {
	Friends []FriendOutput `json:"friends"`
}

func (s *Server) registerListFriendsTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_friends",
		Description: "List the user's friends with their latest presence and location.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Optional case-insensitive filter on name or username",
				},
			},
		},
	}, s.handleListFriends)
}

func (s *Server) handleListFriends(_ context.Context, req *mcp.CallToolRequest, input ListFriendsInput) (*mcp.CallToolResult, ListFriendsOutput, error) {
	snap := s.engine.Snapshot()
	query := ""
	if input.Query != nil {
		query = strings.ToLower(strings.TrimSpace(*input.Query))
	}

	output := ListFriendsOutput{Friends: []FriendOutput{}}
	for _, f := range snap.Friends {
		if query != "" &&
			!strings.Contains(strings.ToLower(f.Name), query) &&
			!strings.Contains(strings.ToLower(f.Username), query) {
			continue
		}
		output.Friends = append(output.Friends, friendOutput(f))
	}
	return textResult(output), output, nil
}

// LocateFriendInput defines input for the locate_friend tool.
type LocateFriendInput struct {
	Username string `json:"username"`
}

func (s *Server) registerLocateFriendTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "locate_friend",
		Description: "Get the latest known position of one friend by username.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"username": map[string]interface{}{
					"type":        "string",
					"description": "Friend's username",
				},
			},
			"required": []string{"username"},
		},
	}, s.handleLocateFriend)
}

func (s *Server) handleLocateFriend(_ context.Context, req *mcp.CallToolRequest, input LocateFriendInput) (*mcp.CallToolResult, FriendOutput, error) {
	snap := s.engine.Snapshot()
	for _, f := range snap.Friends {
		if strings.EqualFold(f.Username, input.Username) {
			output := friendOutput(f)
			return textResult(output), output, nil
		}
	}
	return nil, FriendOutput{}, fmt.Errorf("no friend with username %q", input.Username)
}

// RequestOutput is one pending friend request in tool output.
type RequestOutput struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingRequestsOutput defines output for the pending_requests tool.
type PendingRequestsOutput struct {
	Requests []RequestOutput `json:"requests"`
}

func (s *Server) registerPendingRequestsTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pending_requests",
		Description: "List incoming friend requests awaiting a decision.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}, s.handlePendingRequests)
}

func (s *Server) handlePendingRequests(_ context.Context, req *mcp.CallToolRequest, input struct{}) (*mcp.CallToolResult, PendingRequestsOutput, error) {
	snap := s.engine.Snapshot()
	output := PendingRequestsOutput{Requests: []RequestOutput{}}
	for _, r := range snap.PendingRequests {
		from := r.RequesterID.String()
		if r.Sender != nil {
			from = r.Sender.Username
		}
		output.Requests = append(output.Requests, RequestOutput{
			ID:        r.ID.String(),
			From:      from,
			CreatedAt: r.CreatedAt,
		})
	}
	return textResult(output), output, nil
}

// AlertOutput is one alert in tool output.
type AlertOutput struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  string    `json:"priority"`
	IsRead    bool      `json:"is_read"`
	Timestamp time.Time `json:"timestamp"`
}

// RecentAlertsInput defines input for the recent_alerts tool.
type RecentAlertsInput struct {
	UnreadOnly *bool `json:"unread_only,omitempty"`
}

// RecentAlertsOutput defines output for the recent_alerts tool.
type RecentAlertsOutput struct {
	Alerts []AlertOutput `json:"alerts"`
}

func (s *Server) registerRecentAlertsTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recent_alerts",
		Description: "List the user's recent alerts, newest first.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"unread_only": map[string]interface{}{
					"type":        "boolean",
					"description": "Return only unread alerts",
				},
			},
		},
	}, s.handleRecentAlerts)
}

func (s *Server) handleRecentAlerts(_ context.Context, req *mcp.CallToolRequest, input RecentAlertsInput) (*mcp.CallToolResult, RecentAlertsOutput, error) {
	snap := s.engine.Snapshot()
	unreadOnly := input.UnreadOnly != nil && *input.UnreadOnly

	output := RecentAlertsOutput{Alerts: []AlertOutput{}}
	for _, a := range snap.Alerts {
		if unreadOnly && a.IsRead {
			continue
		}
		output.Alerts = append(output.Alerts, AlertOutput{
			ID:        a.ID.String(),
			Type:      string(a.Type),
			Title:     a.Title,
			Message:   a.Message,
			Priority:  string(a.Priority),
			IsRead:    a.IsRead,
			Timestamp: a.Timestamp,
		})
	}
	return textResult(output), output, nil
}

// MyLocationOutput defines output for the my_location tool.
type MyLocationOutput struct {
	Username  string     `json:"username"`
	IsSharing bool       `json:"is_sharing"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (s *Server) registerMyLocationTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "my_location",
		Description: "Get the signed-in user's own latest position and sharing state.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}, s.handleMyLocation)
}

func (s *Server) handleMyLocation(_ context.Context, req *mcp.CallToolRequest, input struct{}) (*mcp.CallToolResult, MyLocationOutput, error) {
	snap := s.engine.Snapshot()
	if snap.Self == nil {
		return nil, MyLocationOutput{}, fmt.Errorf("not signed in")
	}
	output := MyLocationOutput{
		Username:  snap.Self.Username,
		IsSharing: snap.Self.IsSharing,
	}
	if snap.Self.Location != nil {
		output.Latitude = &snap.Self.Location.Lat
		output.Longitude = &snap.Self.Location.Lng
		output.UpdatedAt = &snap.Self.Location.Timestamp
	}
	return textResult(output), output, nil
}
