package mongodb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
)

const (
	CharactersCollection     = "characters"
	CorporationsCollection   = "corporations"
	AlliancesCollection      = "alliances"
	UsersCollection          = "users"
	UserCharactersCollection = "user_characters"
)

var (
	clientInstance *mongo.Client
	dbInstance     *mongo.Database
	initMu         sync.Mutex
)

// InitMongoDB connects the shared client and selects dbName.
// It should be called once at application startup; later calls are no-ops.
func InitMongoDB(ctx context.Context, uri, dbName string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if dbInstance != nil {
		return nil
	}
	if uri == "" || dbName == "" {
		return errors.New("mongodb uri and database name must be provided")
	}

	log.Info().Str("database", dbName).Msg("Initializing MongoDB client")

	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetConnectTimeout(10 * time.Second)
	clientOptions.SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to MongoDB")
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		log.Error().Err(err).Msg("Failed to ping MongoDB primary")
		_ = client.Disconnect(context.Background())
		return err
	}

	clientInstance = client
	dbInstance = client.Database(dbName)
	log.Info().Msg("MongoDB client initialized successfully.")

	return nil
}

// GetDB returns the database selected by InitMongoDB, or nil.
func GetDB() *mongo.Database {
	initMu.Lock()
	defer initMu.Unlock()
	return dbInstance
}

// Ping checks the shared client. Used by the health endpoint.
func Ping(ctx context.Context) error {
	initMu.Lock()
	client := clientInstance
	initMu.Unlock()

	if client == nil {
		return errors.New("mongodb client is not initialized")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(pingCtx, readpref.Primary())
}

// CloseMongoDB disconnects the shared client.
func CloseMongoDB(ctx context.Context) {
	initMu.Lock()
	defer initMu.Unlock()

	if clientInstance == nil {
		return
	}
	log.Info().Msg("Closing MongoDB connection.")
	if err := clientInstance.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("Error closing MongoDB connection")
	}
	clientInstance = nil
	dbInstance = nil
}
