package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hitoshi/gatekeeper/internal/model"
)

// WhitelistCollection はホワイトリストを保持するMongoDBコレクション名。
const WhitelistCollection = "whitelist"

// whitelistDocument はwhitelistコレクションのドキュメント。
type whitelistDocument struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	CreatedAt time.Time `bson:"createdAt"`
}

// MongoWhitelistRepo はMongoDBを使用したホワイトリストリポジトリ。
// emailのユニークインデックスで重複登録を防ぐ。
type MongoWhitelistRepo struct {
	coll *mongo.Collection
}

// NewMongoWhitelistRepo はMongoWhitelistRepoを生成する。
func NewMongoWhitelistRepo(db *mongo.Database) *MongoWhitelistRepo {
	return &MongoWhitelistRepo{coll: db.Collection(WhitelistCollection)}
}

// EnsureIndexes はemailのユニークインデックスを作成する。
// 既に存在する場合は何もしない。
func (r *MongoWhitelistRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create whitelist email index: %w", err)
	}
	return nil
}

// ExistsByEmail はメールアドレスが登録済みかどうかを返す。
func (r *MongoWhitelistRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	err := r.coll.FindOne(ctx,
		bson.D{{Key: "email", Value: email}},
		options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}}),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query whitelist: %w", err)
	}
	return true, nil
}

// Insert はエントリを追加する。ユニークインデックス違反はErrDuplicateEmailに変換する。
func (r *MongoWhitelistRepo) Insert(ctx context.Context, entry *model.WhitelistEntry) error {
	_, err := r.coll.InsertOne(ctx, whitelistDocument{
		ID:        entry.ID,
		Email:     entry.Email,
		CreatedAt: entry.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert whitelist entry: %w", err)
	}
	return nil
}

// compile-time interface check
var _ WhitelistRepository = (*MongoWhitelistRepo)(nil)
