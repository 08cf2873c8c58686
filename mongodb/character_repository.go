package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/shadow-crest/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CharacterRepositoryMongo implements domain.CharacterRepository.
type CharacterRepositoryMongo struct {
	collection *mongo.Collection
}

// NewCharacterRepositoryMongo creates the repository and ensures its indexes.
func NewCharacterRepositoryMongo(ctx context.Context, db *mongo.Database) (*CharacterRepositoryMongo, error) {
	repo := &CharacterRepositoryMongo{collection: db.Collection(CharactersCollection)}

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_hash", Value: 1}}},
		{Keys: bson.D{{Key: "corporation_id", Value: 1}}},
		{Keys: bson.D{{Key: "alliance_id", Value: 1}}},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if _, err := repo.collection.Indexes().CreateMany(timeoutCtx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for characters collection")
	}
	return repo, nil
}

// GetByID returns domain.ErrNotFound for unknown ids.
func (r *CharacterRepositoryMongo) GetByID(ctx context.Context, id int64) (*domain.Character, error) {
	var character domain.Character
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&character); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		log.Error().Err(err).Int64("characterID", id).Msg("Error retrieving character from MongoDB")
		return nil, err
	}
	return &character, nil
}

// Save upserts character by id, keeping the first CreatedAt.
func (r *CharacterRepositoryMongo) Save(ctx context.Context, character *domain.Character) (*domain.Character, error) {
	if character.ID == 0 {
		return nil, errors.New("character id cannot be empty")
	}
	if err := upsertByID(ctx, r.collection, character.ID, character, &character.CreatedAt, &character.UpdatedAt); err != nil {
		log.Error().Err(err).Int64("characterID", character.ID).Msg("Error saving character to MongoDB")
		return nil, err
	}
	return character, nil
}

// CorporationRepositoryMongo implements domain.CorporationRepository.
type CorporationRepositoryMongo struct {
	collection *mongo.Collection
}

// NewCorporationRepositoryMongo creates the repository.
func NewCorporationRepositoryMongo(db *mongo.Database) *CorporationRepositoryMongo {
	return &CorporationRepositoryMongo{collection: db.Collection(CorporationsCollection)}
}

func (r *CorporationRepositoryMongo) GetByID(ctx context.Context, id int64) (*domain.Corporation, error) {
	var corp domain.Corporation
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&corp); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &corp, nil
}

func (r *CorporationRepositoryMongo) Save(ctx context.Context, corp *domain.Corporation) (*domain.Corporation, error) {
	if corp.ID == 0 {
		return nil, errors.New("corporation id cannot be empty")
	}
	if err := upsertByID(ctx, r.collection, corp.ID, corp, &corp.CreatedAt, &corp.UpdatedAt); err != nil {
		log.Error().Err(err).Int64("corporationID", corp.ID).Msg("Error saving corporation to MongoDB")
		return nil, err
	}
	return corp, nil
}

// AllianceRepositoryMongo implements domain.AllianceRepository.
type AllianceRepositoryMongo struct {
	collection *mongo.Collection
}

// NewAllianceRepositoryMongo creates the repository.
func NewAllianceRepositoryMongo(db *mongo.Database) *AllianceRepositoryMongo {
	return &AllianceRepositoryMongo{collection: db.Collection(AlliancesCollection)}
}

func (r *AllianceRepositoryMongo) GetByID(ctx context.Context, id int64) (*domain.Alliance, error) {
	var alliance domain.Alliance
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&alliance); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &alliance, nil
}

func (r *AllianceRepositoryMongo) Save(ctx context.Context, alliance *domain.Alliance) (*domain.Alliance, error) {
	if alliance.ID == 0 {
		return nil, errors.New("alliance id cannot be empty")
	}
	if err := upsertByID(ctx, r.collection, alliance.ID, alliance, &alliance.CreatedAt, &alliance.UpdatedAt); err != nil {
		log.Error().Err(err).Int64("allianceID", alliance.ID).Msg("Error saving alliance to MongoDB")
		return nil, err
	}
	return alliance, nil
}

// upsertByID replaces the document with the given _id, inserting it when absent.
// CreatedAt is read back from the stored document so re-saves keep it.
func upsertByID(ctx context.Context, coll *mongo.Collection, id any, doc any, createdAt, updatedAt *time.Time) error {
	now := time.Now().UTC()
	*updatedAt = now

	if createdAt.IsZero() {
		var existing struct {
			CreatedAt time.Time `bson:"created_at"`
		}
		err := coll.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"created_at": 1})).Decode(&existing)
		switch {
		case err == nil && !existing.CreatedAt.IsZero():
			*createdAt = existing.CreatedAt
		case err == nil || errors.Is(err, mongo.ErrNoDocuments):
			*createdAt = now
		default:
			return fmt.Errorf("reading existing document: %w", err)
		}
	}

	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}
