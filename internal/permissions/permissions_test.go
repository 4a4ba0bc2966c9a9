package permissions

import (
	"testing"

	"github.com/blogify/notifier/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCanAct(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		actor  string
		owner  Owner
		want   bool
	}{
		{"everyone allows anyone", ActionLike, "x", Owner{Likes: models.TierEveryone}, true},
		{"everyone allows anonymous", ActionComment, "", Owner{Comments: models.TierEveryone}, true},
		{"followers denies anonymous", ActionLike, "", Owner{Likes: models.TierFollowers, ActorIsFollower: true}, false},
		{"followers allows follower", ActionLike, "x", Owner{Likes: models.TierFollowers, ActorIsFollower: true}, true},
		{"followers denies stranger", ActionLike, "x", Owner{Likes: models.TierFollowers}, false},
		{"followers ignores reverse edge", ActionLike, "x", Owner{Likes: models.TierFollowers, OwnerFollowsActor: true}, false},
		{"following allows when owner follows actor", ActionComment, "x", Owner{Comments: models.TierFollowing, OwnerFollowsActor: true}, true},
		{"following denies a plain follower", ActionComment, "x", Owner{Comments: models.TierFollowing, ActorIsFollower: true}, false},
		{"following denies anonymous", ActionComment, "", Owner{Comments: models.TierFollowing, OwnerFollowsActor: true}, false},
		{"unknown tier denies", ActionLike, "x", Owner{Likes: "friends", ActorIsFollower: true, OwnerFollowsActor: true}, false},
		{"empty tier denies", ActionLike, "x", Owner{}, false},
		{"unknown action denies", Action("share"), "x", Owner{Likes: models.TierEveryone, Comments: models.TierEveryone}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAct(tt.action, tt.actor, tt.owner))
		})
	}
}

// Comment likes follow the comment tier, not the like tier.
func TestLikeCommentUsesCommentTier(t *testing.T) {
	owner := Owner{Likes: models.TierEveryone, Comments: models.TierFollowers}

	assert.True(t, CanAct(ActionLike, "x", owner))
	assert.False(t, CanAct(ActionComment, "x", owner))
	assert.False(t, CanAct(ActionLikeComment, "x", owner))

	owner.ActorIsFollower = true
	assert.True(t, CanAct(ActionComment, "x", owner))
	assert.True(t, CanAct(ActionLikeComment, "x", owner))
}
