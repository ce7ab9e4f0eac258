package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/threadline-ai/chat-platform/internal/apperr"
	"github.com/threadline-ai/chat-platform/internal/model"
	"github.com/threadline-ai/chat-platform/pkg/metrics"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

type conversationDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	UserID        string             `bson:"userId"`
	Title         string             `bson:"title"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
	LastMessageAt time.Time          `bson:"lastMessageAt"`
}

type messageDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `bson:"conversationId"`
	Role           string             `bson:"role"`
	Content        string             `bson:"content"`
	FileURLs       []string           `bson:"fileUrls,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
	IsEdited       bool               `bson:"isEdited,omitempty"`
}

// Mongo bundles the two collections behind the store interfaces. Ids are
// ObjectID hex strings; a hex string that does not parse cannot name a stored
// document, so it maps to not-found rather than a validation error.
type Mongo struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// Connect dials the database and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// NewMongo wires the store against a database handle.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		conversations: db.Collection(conversationsCollection),
		messages:      db.Collection(messagesCollection),
	}
}

// Conversations returns the conversation half of the store.
func (m *Mongo) Conversations() ConversationStore { return &mongoConversations{m} }

// Messages returns the message half of the store.
func (m *Mongo) Messages() MessageStore { return &mongoMessages{m} }

// EnsureIndexes creates the indexes backing the two hot query paths:
// list-by-owner ordered by recency, and transcript reads ordered by time.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "lastMessageAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to index conversations: %w", err)
	}
	_, err = m.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to index messages: %w", err)
	}
	return nil
}

type mongoConversations struct{ *Mongo }

var _ ConversationStore = (*mongoConversations)(nil)

func (s *mongoConversations) Create(ctx context.Context, userID, title string) (*model.Conversation, error) {
	defer metrics.ObserveStoreOp("conversation_create", time.Now())

	now := time.Now().UTC()
	doc := conversationDoc{
		UserID:        userID,
		Title:         title,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}
	res, err := s.conversations.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return conversationFromDoc(&doc), nil
}

func (s *mongoConversations) ListByOwner(ctx context.Context, userID string) ([]model.Conversation, error) {
	defer metrics.ObserveStoreOp("conversation_list", time.Now())

	opts := options.Find().SetSort(bson.D{{Key: "lastMessageAt", Value: -1}})
	cur, err := s.conversations.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cur.Close(ctx)

	var docs []conversationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	convs := make([]model.Conversation, len(docs))
	for i := range docs {
		convs[i] = *conversationFromDoc(&docs[i])
	}
	return convs, nil
}

func (s *mongoConversations) Get(ctx context.Context, id string) (*model.Conversation, error) {
	defer metrics.ObserveStoreOp("conversation_get", time.Now())

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	var doc conversationDoc
	if err := s.conversations.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	return conversationFromDoc(&doc), nil
}

func (s *mongoConversations) Rename(ctx context.Context, id, title string) error {
	defer metrics.ObserveStoreOp("conversation_rename", time.Now())

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.ErrNotFound
	}
	res, err := s.conversations.UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"title": title, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *mongoConversations) Delete(ctx context.Context, id string) error {
	defer metrics.ObserveStoreOp("conversation_delete", time.Now())

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil // nothing stored under an unparseable id
	}
	if _, err := s.conversations.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if _, err := s.messages.DeleteMany(ctx, bson.M{"conversationId": oid}); err != nil {
		return fmt.Errorf("failed to cascade message delete: %w", err)
	}
	return nil
}

func (s *mongoConversations) TouchLastMessage(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.ErrNotFound
	}
	now := time.Now().UTC()
	res, err := s.conversations.UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"lastMessageAt": now, "updatedAt": now}})
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

type mongoMessages struct{ *Mongo }

var _ MessageStore = (*mongoMessages)(nil)

func (s *mongoMessages) Append(ctx context.Context, conversationID string, role model.Role, content string, fileURLs []string) (*model.Message, error) {
	defer metrics.ObserveStoreOp("message_append", time.Now())

	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	// Referential rule: no orphaned messages outside the cascade path.
	n, err := s.conversations.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, fmt.Errorf("failed to check conversation: %w", err)
	}
	if n == 0 {
		return nil, apperr.ErrNotFound
	}

	now := time.Now().UTC()
	doc := messageDoc{
		ConversationID: oid,
		Role:           string(role),
		Content:        content,
		FileURLs:       fileURLs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	res, err := s.messages.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)

	if err := (&mongoConversations{s.Mongo}).TouchLastMessage(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("failed to touch conversation after append: %w", err)
	}
	return messageFromDoc(&doc), nil
}

func (s *mongoMessages) ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	defer metrics.ObserveStoreOp("message_list", time.Now())

	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	// _id as secondary key makes same-timestamp ordering deterministic.
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.messages.Find(ctx, bson.M{"conversationId": oid}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cur.Close(ctx)

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	msgs := make([]model.Message, len(docs))
	for i := range docs {
		msgs[i] = *messageFromDoc(&docs[i])
	}
	return msgs, nil
}

func (s *mongoMessages) get(ctx context.Context, id string) (*messageDoc, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	var doc messageDoc
	if err := s.messages.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return &doc, nil
}

func (s *mongoMessages) Get(ctx context.Context, id string) (*model.Message, error) {
	defer metrics.ObserveStoreOp("message_get", time.Now())

	doc, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return messageFromDoc(doc), nil
}

func (s *mongoMessages) Edit(ctx context.Context, id, content string) error {
	defer metrics.ObserveStoreOp("message_edit", time.Now())

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.ErrNotFound
	}
	res, err := s.messages.UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"content": content, "updatedAt": time.Now().UTC(), "isEdited": true}})
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *mongoMessages) Delete(ctx context.Context, id string) error {
	defer metrics.ObserveStoreOp("message_delete", time.Now())

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	if _, err := s.messages.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (s *mongoMessages) DeleteTailFrom(ctx context.Context, conversationID, anchorID string) error {
	defer metrics.ObserveStoreOp("message_delete_tail", time.Now())

	cid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return apperr.ErrNotFound
	}
	anchor, err := s.get(ctx, anchorID)
	if err != nil {
		return err
	}
	if anchor.ConversationID != cid {
		return apperr.ErrNotFound
	}
	// >= purges same-timestamp successors; the anchor itself survives so an
	// edited turn remains the new tail.
	_, err = s.messages.DeleteMany(ctx, bson.M{
		"conversationId": cid,
		"createdAt":      bson.M{"$gte": anchor.CreatedAt},
		"_id":            bson.M{"$ne": anchor.ID},
	})
	if err != nil {
		return fmt.Errorf("failed to delete message tail: %w", err)
	}
	return nil
}

func conversationFromDoc(doc *conversationDoc) *model.Conversation {
	return &model.Conversation{
		ID:            doc.ID.Hex(),
		UserID:        doc.UserID,
		Title:         doc.Title,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
		LastMessageAt: doc.LastMessageAt,
	}
}

func messageFromDoc(doc *messageDoc) *model.Message {
	return &model.Message{
		ID:             doc.ID.Hex(),
		ConversationID: doc.ConversationID.Hex(),
		Role:           model.Role(doc.Role),
		Content:        doc.Content,
		FileURLs:       doc.FileURLs,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		IsEdited:       doc.IsEdited,
	}
}
