package content

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/blogify/notifier/internal/errors"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoBlog and mongoComment carry the like sets inside the document so a
// toggle is a single-document update.
type mongoBlog struct {
	Blog  `bson:",inline"`
	Likes []string `bson:"likes"`
}

type mongoComment struct {
	Comment `bson:",inline"`
	Likes   []string `bson:"likes"`
}

// MongoStore keeps content in MongoDB.
type MongoStore struct {
	client   *mongo.Client
	blogs    *mongo.Collection
	comments *mongo.Collection
}

// ConnectMongo dials uri and verifies the connection.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoStore(client, database), nil
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:   client,
		blogs:    db.Collection("blogs"),
		comments: db.Collection("comments"),
	}
}

// EnsureIndexes creates the lookup indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.blogs.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "author_id", Value: 1}}}); err != nil {
		return fmt.Errorf("create blog index: %w", err)
	}
	if _, err := s.comments.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "blog_id", Value: 1}}}); err != nil {
		return fmt.Errorf("create comment index: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) GetBlog(ctx context.Context, id string) (*Blog, error) {
	var doc mongoBlog
	err := s.blogs.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.NotFound("blog")
	}
	if err != nil {
		return nil, fmt.Errorf("get blog: %w", err)
	}
	return &doc.Blog, nil
}

func (s *MongoStore) GetComment(ctx context.Context, id string) (*Comment, error) {
	var doc mongoComment
	err := s.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.NotFound("comment")
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &doc.Comment, nil
}

func (s *MongoStore) CreateBlog(ctx context.Context, blog *Blog) error {
	if blog.ID == "" {
		blog.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	blog.CreatedAt, blog.UpdatedAt = now, now
	if _, err := s.blogs.InsertOne(ctx, mongoBlog{Blog: *blog, Likes: []string{}}); err != nil {
		return fmt.Errorf("create blog: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateComment(ctx context.Context, comment *Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	comment.CreatedAt, comment.UpdatedAt = now, now
	if _, err := s.comments.InsertOne(ctx, mongoComment{Comment: *comment, Likes: []string{}}); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (s *MongoStore) ToggleBlogLike(ctx context.Context, blogID, userID string) (bool, error) {
	return toggleMember(ctx, s.blogs, "blog", blogID, userID)
}

func (s *MongoStore) ToggleCommentLike(ctx context.Context, commentID, userID string) (bool, error) {
	return toggleMember(ctx, s.comments, "comment", commentID, userID)
}

// toggleMember adds userID to the document's likes unless present, else
// pulls it. Each branch is one conditional single-document update.
func toggleMember(ctx context.Context, coll *mongo.Collection, resource, id, userID string) (bool, error) {
	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": id, "likes": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"likes": userID}, "$currentDate": bson.M{"updated_at": true}},
	)
	if err != nil {
		return false, fmt.Errorf("like %s: %w", resource, err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	res, err = coll.UpdateOne(ctx,
		bson.M{"_id": id, "likes": userID},
		bson.M{"$pull": bson.M{"likes": userID}, "$currentDate": bson.M{"updated_at": true}},
	)
	if err != nil {
		return false, fmt.Errorf("unlike %s: %w", resource, err)
	}
	if res.MatchedCount == 0 {
		return false, errors.NotFound(resource)
	}
	return false, nil
}

func (s *MongoStore) BlogLikers(ctx context.Context, blogID string) ([]string, error) {
	var doc mongoBlog
	if err := s.blogs.FindOne(ctx, bson.M{"_id": blogID}).Decode(&doc); err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NotFound("blog")
		}
		return nil, fmt.Errorf("list blog likes: %w", err)
	}
	sort.Strings(doc.Likes)
	return doc.Likes, nil
}

func (s *MongoStore) CommentLikers(ctx context.Context, commentID string) ([]string, error) {
	var doc mongoComment
	if err := s.comments.FindOne(ctx, bson.M{"_id": commentID}).Decode(&doc); err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NotFound("comment")
		}
		return nil, fmt.Errorf("list comment likes: %w", err)
	}
	sort.Strings(doc.Likes)
	return doc.Likes, nil
}
