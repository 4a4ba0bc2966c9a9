// Package permissions decides whether an actor may like or comment on
// content owned by another user.
package permissions

import "github.com/blogify/notifier/internal/models"

// Action is a gated interaction with someone else's content.
type Action string

const (
	ActionLike    Action = "like"
	ActionComment Action = "comment"
	// ActionLikeComment is gated by the blog owner's comment tier.
	ActionLikeComment Action = "like_comment"
)

// Owner is a snapshot of a content owner's settings, with membership
// answers already resolved for one actor.
type Owner struct {
	ID       string
	Likes    models.Tier
	Comments models.Tier

	// ActorIsFollower: the actor is in the owner's followers set.
	ActorIsFollower bool
	// OwnerFollowsActor: the actor is in the owner's following set.
	OwnerFollowsActor bool
}

// Tier returns the tier that gates action.
func (o Owner) Tier(action Action) models.Tier {
	switch action {
	case ActionLike:
		return o.Likes
	case ActionComment, ActionLikeComment:
		return o.Comments
	}
	return ""
}

// CanAct reports whether actor may perform action on owner's content.
// An empty actor is anonymous. Unknown tiers deny.
func CanAct(action Action, actor string, owner Owner) bool {
	tier := owner.Tier(action)
	if actor == "" {
		return tier == models.TierEveryone
	}
	switch tier {
	case models.TierEveryone:
		return true
	case models.TierFollowers:
		return owner.ActorIsFollower
	case models.TierFollowing:
		// owner must follow the actor, not the other way around
		return owner.OwnerFollowsActor
	}
	return false
}
