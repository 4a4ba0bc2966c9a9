package content

import "context"

// Store is the content collaborator. Toggles are atomic per (content, user)
// and report whether the call added the like.
type Store interface {
	GetBlog(ctx context.Context, id string) (*Blog, error)
	GetComment(ctx context.Context, id string) (*Comment, error)
	CreateBlog(ctx context.Context, blog *Blog) error
	CreateComment(ctx context.Context, comment *Comment) error
	ToggleBlogLike(ctx context.Context, blogID, userID string) (bool, error)
	ToggleCommentLike(ctx context.Context, commentID, userID string) (bool, error)
	BlogLikers(ctx context.Context, blogID string) ([]string, error)
	CommentLikers(ctx context.Context, commentID string) ([]string, error)
}
