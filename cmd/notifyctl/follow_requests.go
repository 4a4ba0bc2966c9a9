package main

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var followRequestsCmd = &cobra.Command{
	Use:               "follow-requests",
	Short:             "Manage follow requests",
	Long:              "List, accept, reject, send and cancel follow requests as the token's user",
	PersistentPreRunE: requireToken,
}

var listFollowRequestsCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending follow requests addressed to you",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listFollowRequests()
	},
}

var acceptFollowRequestCmd = &cobra.Command{
	Use:   "accept <request-id>",
	Short: "Accept a follow request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decideFollowRequest(args[0], "accept")
	},
}

var rejectFollowRequestCmd = &cobra.Command{
	Use:   "reject <request-id>",
	Short: "Reject a follow request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decideFollowRequest(args[0], "reject")
	},
}

var sendFollowRequestCmd = &cobra.Command{
	Use:   "send <user-id>",
	Short: "Ask to follow a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := callAPI(http.MethodPost, "/users/"+args[0]+"/follow", nil)
		if err != nil {
			return err
		}
		var resp struct {
			Request followRequest `json:"request"`
		}
		return printOr(raw, &resp, func() {
			fmt.Printf("✓ Follow request sent (%s)\n", resp.Request.ID)
		})
	},
}

var cancelFollowRequestCmd = &cobra.Command{
	Use:   "cancel <request-id>",
	Short: "Withdraw a follow request you sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := callAPI(http.MethodDelete, "/follow-requests/"+args[0], nil); err != nil {
			return err
		}
		fmt.Printf("✓ Follow request cancelled\n")
		return nil
	},
}

func init() {
	followRequestsCmd.AddCommand(listFollowRequestsCmd)
	followRequestsCmd.AddCommand(acceptFollowRequestCmd)
	followRequestsCmd.AddCommand(rejectFollowRequestCmd)
	followRequestsCmd.AddCommand(sendFollowRequestCmd)
	followRequestsCmd.AddCommand(cancelFollowRequestCmd)
}

type followRequest struct {
	ID        string `json:"id"`
	SenderID  string `json:"sender_id"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func listFollowRequests() error {
	raw, err := callAPI(http.MethodGet, "/follow-requests", nil)
	if err != nil {
		return err
	}

	var result struct {
		Requests []followRequest `json:"requests"`
		Count    int             `json:"count"`
	}
	return printOr(raw, &result, func() {
		if result.Count == 0 {
			fmt.Printf("✓ No pending follow requests\n")
			return
		}

		fmt.Printf("\n📝 Pending Follow Requests (%d)\n", result.Count)
		fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFROM\tMESSAGE\tCREATED")
		for _, req := range result.Requests {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				req.ID,
				truncateString(req.SenderID, 8),
				req.Message,
				req.CreatedAt)
		}
		w.Flush()

		fmt.Printf("\nUse: notifyctl follow-requests accept <id>\n")
		fmt.Printf("     notifyctl follow-requests reject <id>\n")
	})
}

func decideFollowRequest(requestID, decision string) error {
	raw, err := callAPI(http.MethodPost, "/notifications/"+requestID+"/"+decision, nil)
	if err != nil {
		return err
	}
	return printOr(raw, nil, func() {
		if decision == "accept" {
			fmt.Printf("✓ Follow request accepted\n")
		} else {
			fmt.Printf("✓ Follow request rejected\n")
		}
	})
}
