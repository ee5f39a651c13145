package mirror

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stock_radar/models"
	"stock_radar/services/volumeprofile"
)

// MongoDB collection names
const (
	mongoDBName             = "stock_radar"
	mongoProfilesCollection = "volume_profiles"
	mongoSnapshotCollection = "indicator_snapshots"
)

// MongoMirror replicates learned profiles and indicator snapshots to a
// MongoDB Atlas cluster for offsite reads. Mirroring is best effort and
// disabled entirely when MONGODB_URI is unset.
type MongoMirror struct {
	client      *mongo.Client
	database    *mongo.Database
	mu          sync.RWMutex
	isConnected bool
	uriSet      bool
	lastError   string
}

// mongoProfile is the profile document shape, one per symbol.
type mongoProfile struct {
	Symbol        string    `bson:"_id"`
	SampleCount   int       `bson:"sample_count"`
	Frozen        bool      `bson:"frozen"`
	LastTradeDate string    `bson:"last_trade_date"`
	AvgRatios     []float64 `bson:"avg_ratios"`
	AvgCumRatios  []float64 `bson:"avg_cum_ratios"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

// mongoSnapshot is the indicator snapshot document shape, one per indicator.
type mongoSnapshot struct {
	IndicatorCode string                         `bson:"_id"`
	UpdatedAt     time.Time                      `bson:"updated_at"`
	Count         int                            `bson:"count"`
	Rows          []models.IndicatorRankSnapshot `bson:"rows"`
}

// NewMongoMirror creates the mirror from MONGODB_URI. A missing URI is not
// an error; the mirror just stays disabled.
func NewMongoMirror() *MongoMirror {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		log.Println("MONGODB_URI not set, Atlas mirror disabled")
		return &MongoMirror{lastError: "MONGODB_URI environment variable not set"}
	}

	m := &MongoMirror{uriSet: true}
	if err := m.connect(uri); err != nil {
		log.Printf("Atlas mirror unavailable: %v", err)
	}
	return m
}

func (m *MongoMirror) connect(uri string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		m.lastError = fmt.Sprintf("failed to connect: %v", err)
		return err
	}
	if err := client.Ping(ctx, nil); err != nil {
		m.lastError = fmt.Sprintf("failed to ping: %v", err)
		client.Disconnect(ctx)
		return err
	}

	m.mu.Lock()
	m.client = client
	m.database = client.Database(mongoDBName)
	m.isConnected = true
	m.lastError = ""
	m.mu.Unlock()

	log.Println("MongoDB Atlas mirror connected")
	return nil
}

// IsConfigured reports whether the mirror is connected
func (m *MongoMirror) IsConfigured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isConnected
}

// Status returns connection details for the status endpoint
func (m *MongoMirror) Status() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := map[string]any{
		"uri_set":   m.uriSet,
		"connected": m.isConnected,
	}
	if m.lastError != "" {
		status["error"] = m.lastError
	}
	return status
}

// Close disconnects from Atlas
func (m *MongoMirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m.isConnected = false
	return m.client.Disconnect(ctx)
}

// SaveProfile mirrors one learned profile
func (m *MongoMirror) SaveProfile(ctx context.Context, profile *volumeprofile.Profile) error {
	if !m.IsConfigured() {
		return fmt.Errorf("Atlas mirror not configured")
	}

	doc := profileDoc(profile)
	collection := m.database.Collection(mongoProfilesCollection)
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(ctx, bson.M{"_id": profile.Symbol}, doc, opts)
	if err != nil {
		return fmt.Errorf("failed to mirror profile for %s: %w", profile.Symbol, err)
	}
	return nil
}

// SaveProfiles mirrors a batch of profiles with bulk upserts
func (m *MongoMirror) SaveProfiles(ctx context.Context, profiles []*volumeprofile.Profile) error {
	if !m.IsConfigured() {
		return fmt.Errorf("Atlas mirror not configured")
	}
	if len(profiles) == 0 {
		return nil
	}

	operations := make([]mongo.WriteModel, 0, len(profiles))
	for _, profile := range profiles {
		if profile == nil {
			continue
		}
		operations = append(operations, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": profile.Symbol}).
			SetReplacement(profileDoc(profile)).
			SetUpsert(true))
	}

	collection := m.database.Collection(mongoProfilesCollection)
	batchSize := 100
	for i := 0; i < len(operations); i += batchSize {
		end := i + batchSize
		if end > len(operations) {
			end = len(operations)
		}
		if _, err := collection.BulkWrite(ctx, operations[i:end]); err != nil {
			return fmt.Errorf("failed to bulk mirror profiles: %w", err)
		}
	}

	log.Printf("Mirrored %d profiles to MongoDB Atlas", len(operations))
	return nil
}

// SaveSnapshot mirrors one indicator's full rank snapshot
func (m *MongoMirror) SaveSnapshot(ctx context.Context, code string, rows []models.IndicatorRankSnapshot) error {
	if !m.IsConfigured() {
		return fmt.Errorf("Atlas mirror not configured")
	}

	doc := mongoSnapshot{
		IndicatorCode: code,
		UpdatedAt:     time.Now(),
		Count:         len(rows),
		Rows:          rows,
	}
	collection := m.database.Collection(mongoSnapshotCollection)
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(ctx, bson.M{"_id": code}, doc, opts)
	if err != nil {
		return fmt.Errorf("failed to mirror snapshot for %s: %w", code, err)
	}
	return nil
}

func profileDoc(profile *volumeprofile.Profile) mongoProfile {
	doc := mongoProfile{
		Symbol:        profile.Symbol,
		SampleCount:   profile.SampleCount,
		Frozen:        profile.Frozen(),
		LastTradeDate: profile.LastTradeDate,
		AvgRatios:     make([]float64, len(profile.Minutes)),
		AvgCumRatios:  make([]float64, len(profile.Minutes)),
		UpdatedAt:     time.Now(),
	}
	for i := range profile.Minutes {
		doc.AvgRatios[i] = profile.Minutes[i].AvgRatio
		doc.AvgCumRatios[i] = profile.Minutes[i].AvgCumRatio
	}
	return doc
}
