// ABOUTME: Friend request commands: send, list, accept, decline
// ABOUTME: Maps store sentinel errors onto readable CLI messages

package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fightbackff-oss/trackmate/internal/models"
	"github.com/fightbackff-oss/trackmate/internal/store"
	"github.com/fightbackff-oss/trackmate/internal/ui"
)

var requestCmd = &cobra.Command{
	Use:   "request <email or username>",
	Short: "Send a friend request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := resumeSession(ctx); err != nil {
			return err
		}

		err := eng.RequestFriend(ctx, args[0])
		switch {
		case errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("no user found for %q", args[0])
		case errors.Is(err, store.ErrSelfReference):
			return fmt.Errorf("that's you")
		case errors.Is(err, store.ErrAlreadyFriends):
			return fmt.Errorf("you are already friends with %q", args[0])
		case errors.Is(err, store.ErrDuplicatePending):
			return fmt.Errorf("a request between you and %q is already pending", args[0])
		case err != nil:
			return err
		}
		fmt.Printf("Request sent to %s\n", color.CyanString(args[0]))
		return nil
	},
}

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List incoming friend requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := resumeSession(ctx); err != nil {
			return err
		}

		pending := eng.Snapshot().PendingRequests
		if len(pending) == 0 {
			fmt.Println("No pending requests.")
			return nil
		}
		for _, r := range pending {
			fmt.Println(ui.FormatRequest(&r))
		}
		fmt.Println("\nAccept with 'trackmate accept <id>', decline with 'trackmate decline <id>'.")
		return nil
	},
}

var acceptCmd = &cobra.Command{
	Use:   "accept <request-id>",
	Short: "Accept a friend request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := resumeSession(ctx); err != nil {
			return err
		}
		id, err := resolveRequestID(args[0])
		if err != nil {
			return err
		}
		if err := eng.AcceptRequest(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no pending request %s", args[0])
			}
			return err
		}
		fmt.Println(color.GreenString("Request accepted. You are now friends."))
		return nil
	},
}

var declineCmd = &cobra.Command{
	Use:   "decline <request-id>",
	Short: "Decline a friend request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := resumeSession(ctx); err != nil {
			return err
		}
		id, err := resolveRequestID(args[0])
		if err != nil {
			return err
		}
		if err := eng.DeclineRequest(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no pending request %s", args[0])
			}
			return err
		}
		fmt.Println("Request declined.")
		return nil
	},
}

// resolveRequestID accepts either a full UUID or the 8-character prefix the
// requests listing shows.
func resolveRequestID(arg string) (uuid.UUID, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return id, nil
	}
	var matches []models.FriendRequest
	for _, r := range eng.Snapshot().PendingRequests {
		if len(arg) >= 4 && len(arg) <= 36 && r.ID.String()[:len(arg)] == arg {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0].ID, nil
	case 0:
		return uuid.Nil, fmt.Errorf("no pending request matches %q", arg)
	default:
		return uuid.Nil, fmt.Errorf("%q is ambiguous, use the full id", arg)
	}
}

func init() {
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(requestsCmd)
	rootCmd.AddCommand(acceptCmd)
	rootCmd.AddCommand(declineCmd)
}
