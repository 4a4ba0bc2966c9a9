// Package events defines the social actions that produce notifications.
package events

// Action is a user action that may notify someone.
type Action string

const (
	NewBlog       Action = "NEW_BLOG"
	LikeBlog      Action = "LIKE_BLOG"
	NewComment    Action = "NEW_COMMENT"
	LikeComment   Action = "LIKE_COMMENT"
	FollowRequest Action = "FOLLOW_REQUEST"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case NewBlog, LikeBlog, NewComment, LikeComment, FollowRequest:
		return true
	}
	return false
}

// Event is one action to fan out. Which ids are needed depends on Action:
// blog actions need BlogID, LIKE_COMMENT needs CommentID, FOLLOW_REQUEST
// needs RecipientID.
type Event struct {
	Action      Action `json:"action"`
	ActorID     string `json:"sender_id"`
	BlogID      string `json:"blog_id,omitempty"`
	CommentID   string `json:"comment_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
}

// Result summarises a dispatch.
type Result struct {
	Action     Action `json:"action"`
	Recipients int    `json:"recipients"`
	Persisted  int    `json:"persisted"`
	Suppressed int    `json:"suppressed"` // recipient was the actor
	Failed     int    `json:"failed"`
}
