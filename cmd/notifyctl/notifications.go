package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:               "notifications",
	Short:             "Read your notifications and trigger raw events",
	PersistentPreRunE: requireToken,
}

var listLimit int

var listNotificationsCmd = &cobra.Command{
	Use:   "list",
	Short: "List your notifications, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := callAPI(http.MethodGet, fmt.Sprintf("/notifications?limit=%d", listLimit), nil)
		if err != nil {
			return err
		}
		var result struct {
			Notifications []struct {
				ID        string `json:"id"`
				Type      string `json:"type"`
				Message   string `json:"message"`
				Status    string `json:"status"`
				IsRead    bool   `json:"is_read"`
				CreatedAt string `json:"created_at"`
			} `json:"notifications"`
		}
		return printOr(raw, &result, func() {
			if len(result.Notifications) == 0 {
				fmt.Printf("✓ Nothing new\n")
				return
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tREAD\tMESSAGE")
			for _, n := range result.Notifications {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", n.ID, n.Type, n.Status, n.IsRead, n.Message)
			}
			w.Flush()
		})
	},
}

var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Show your unread count",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := callAPI(http.MethodGet, "/notifications/unread-count", nil)
		if err != nil {
			return err
		}
		var result struct {
			UnreadCount int64 `json:"unread_count"`
		}
		return printOr(raw, &result, func() {
			fmt.Printf("%d unread\n", result.UnreadCount)
		})
	},
}

var readCmd = &cobra.Command{
	Use:   "read <notification-id>",
	Short: "Mark a notification read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := callAPI(http.MethodPost, "/notifications/"+args[0]+"/read", nil)
		if err != nil {
			return err
		}
		return printOr(raw, nil, func() { fmt.Printf("✓ Marked read\n") })
	},
}

var triggerBlog, triggerComment, triggerRecipient string

var triggerCmd = &cobra.Command{
	Use:   "trigger <action>",
	Short: "Dispatch a raw event as yourself (NEW_BLOG, LIKE_BLOG, NEW_COMMENT, LIKE_COMMENT, FOLLOW_REQUEST)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"action": args[0]}
		if triggerBlog != "" {
			body["blog_id"] = triggerBlog
		}
		if triggerComment != "" {
			body["comment_id"] = triggerComment
		}
		if triggerRecipient != "" {
			body["recipient_id"] = triggerRecipient
		}
		raw, err := callAPI(http.MethodPost, "/notifications/trigger", body)
		if err != nil {
			return err
		}
		var resp struct {
			Result json.RawMessage `json:"result"`
		}
		return printOr(raw, &resp, func() {
			fmt.Printf("✓ Dispatched: %s\n", string(resp.Result))
		})
	},
}

func init() {
	listNotificationsCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum notifications to show")
	triggerCmd.Flags().StringVar(&triggerBlog, "blog", "", "Blog id")
	triggerCmd.Flags().StringVar(&triggerComment, "comment", "", "Comment id")
	triggerCmd.Flags().StringVar(&triggerRecipient, "recipient", "", "Recipient user id (FOLLOW_REQUEST)")

	notificationsCmd.AddCommand(listNotificationsCmd)
	notificationsCmd.AddCommand(unreadCmd)
	notificationsCmd.AddCommand(readCmd)
	notificationsCmd.AddCommand(triggerCmd)
}
