package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pilab-dev/shadow-crest/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// UserRepositoryMongo implements domain.UserRepository.
type UserRepositoryMongo struct {
	collection *mongo.Collection
}

// NewUserRepositoryMongo creates the repository.
func NewUserRepositoryMongo(db *mongo.Database) *UserRepositoryMongo {
	return &UserRepositoryMongo{collection: db.Collection(UsersCollection)}
}

func (r *UserRepositoryMongo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		log.Error().Err(err).Str("userID", id).Msg("Error retrieving user from MongoDB")
		return nil, err
	}
	return &user, nil
}

// Create inserts user, assigning a uuid when ID is empty.
func (r *UserRepositoryMongo) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("user with this ID already exists")
		}
		log.Error().Err(err).Msg("Error creating user in MongoDB")
		return err
	}
	return nil
}

// UserCharacterRepositoryMongo implements domain.UserCharacterRepository.
type UserCharacterRepositoryMongo struct {
	collection *mongo.Collection
}

// NewUserCharacterRepositoryMongo creates the repository and ensures its indexes.
func NewUserCharacterRepositoryMongo(ctx context.Context, db *mongo.Database) (*UserCharacterRepositoryMongo, error) {
	repo := &UserCharacterRepositoryMongo{collection: db.Collection(UserCharactersCollection)}

	timeoutCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	_, err := repo.collection.Indexes().CreateOne(timeoutCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for user_characters collection")
	}
	return repo, nil
}

func (r *UserCharacterRepositoryMongo) GetByCharacterID(ctx context.Context, characterID int64) (*domain.UserCharacter, error) {
	var link domain.UserCharacter
	if err := r.collection.FindOne(ctx, bson.M{"_id": characterID}).Decode(&link); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

// Save upserts the link for link.CharacterID.
func (r *UserCharacterRepositoryMongo) Save(ctx context.Context, link *domain.UserCharacter) error {
	if link.CharacterID == 0 || link.UserID == "" {
		return errors.New("user character link needs both ids")
	}
	if err := upsertByID(ctx, r.collection, link.CharacterID, link, &link.CreatedAt, &link.UpdatedAt); err != nil {
		log.Error().Err(err).Int64("characterID", link.CharacterID).Msg("Error saving user character link")
		return err
	}
	return nil
}

// NewRepositories builds every repository on db.
func NewRepositories(ctx context.Context, db *mongo.Database) (*domain.Repositories, error) {
	characters, err := NewCharacterRepositoryMongo(ctx, db)
	if err != nil {
		return nil, err
	}
	links, err := NewUserCharacterRepositoryMongo(ctx, db)
	if err != nil {
		return nil, err
	}
	return &domain.Repositories{
		Characters:     characters,
		Corporations:   NewCorporationRepositoryMongo(db),
		Alliances:      NewAllianceRepositoryMongo(db),
		Users:          NewUserRepositoryMongo(db),
		UserCharacters: links,
	}, nil
}
