package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Account is a login identity. The profile lives separately at users/{uid}.
type Account struct {
	UID          string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	DisplayName  string    `bson:"displayName"`
	Disabled     bool      `bson:"disabled"`
	CreatedAt    time.Time `bson:"createdAt"`
}

type AccountStore interface {
	Create(ctx context.Context, acct *Account) error
	ByEmail(ctx context.Context, email string) (*Account, error)
	ByUID(ctx context.Context, uid string) (*Account, error)
	SetDisabled(ctx context.Context, uid string, disabled bool) error
}

// NewUID returns a fresh account id.
func NewUID() string {
	return primitive.NewObjectID().Hex()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// accountsCollection is reserved: the document store never exposes
// collections starting with an underscore.
const accountsCollection = "_accounts"

type MongoAccounts struct {
	coll *mongo.Collection
}

// NewMongoAccounts returns the MongoDB account store and makes sure the
// unique e-mail index exists.
func NewMongoAccounts(ctx context.Context, db *mongo.Database) (*MongoAccounts, error) {
	coll := db.Collection(accountsCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create email index: %w", err)
	}
	return &MongoAccounts{coll: coll}, nil
}

func (s *MongoAccounts) Create(ctx context.Context, acct *Account) error {
	acct.Email = normalizeEmail(acct.Email)
	if _, err := s.coll.InsertOne(ctx, acct); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAccountExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *MongoAccounts) ByEmail(ctx context.Context, email string) (*Account, error) {
	return s.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (s *MongoAccounts) ByUID(ctx context.Context, uid string) (*Account, error) {
	return s.findOne(ctx, bson.M{"_id": uid})
}

func (s *MongoAccounts) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	res, err := s.coll.UpdateByID(ctx, uid, bson.M{"$set": bson.M{"disabled": disabled}})
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *MongoAccounts) findOne(ctx context.Context, filter bson.M) (*Account, error) {
	var acct Account
	err := s.coll.FindOne(ctx, filter).Decode(&acct)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &acct, nil
}

// MemoryAccounts keeps accounts in process memory.
type MemoryAccounts struct {
	mu    sync.RWMutex
	byUID map[string]Account
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{byUID: make(map[string]Account)}
}

func (s *MemoryAccounts) Create(_ context.Context, acct *Account) error {
	acct.Email = normalizeEmail(acct.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byUID {
		if a.Email == acct.Email {
			return ErrAccountExists
		}
	}
	if _, ok := s.byUID[acct.UID]; ok {
		return ErrAccountExists
	}
	s.byUID[acct.UID] = *acct
	return nil
}

func (s *MemoryAccounts) ByEmail(_ context.Context, email string) (*Account, error) {
	email = normalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	uids := make([]string, 0, len(s.byUID))
	for uid := range s.byUID {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	for _, uid := range uids {
		if a := s.byUID[uid]; a.Email == email {
			return &a, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (s *MemoryAccounts) ByUID(_ context.Context, uid string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byUID[uid]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (s *MemoryAccounts) SetDisabled(_ context.Context, uid string, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byUID[uid]
	if !ok {
		return ErrAccountNotFound
	}
	a.Disabled = disabled
	s.byUID[uid] = a
	return nil
}
