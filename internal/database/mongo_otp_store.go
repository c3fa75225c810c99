package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/clinic/internal/otp"
)

const otpCollection = "otps"

type mongoOTP struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	PhoneNumber       string             `bson:"phoneNumber"`
	Purpose           string             `bson:"purpose"`
	Code              string             `bson:"code"`
	VerificationToken string             `bson:"verificationToken"`
	ExpiresAt         time.Time          `bson:"expiresAt"`
	Attempts          int                `bson:"attempts"`
	Verified          bool               `bson:"verified"`
	VerifiedAt        *time.Time         `bson:"verifiedAt,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt"`
}

// ConnectMongo opens a client and pings the primary.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// MongoOTPStore keeps OTP records in the "otps" collection. A TTL index on
// createdAt lets the server drop old records on its own.
type MongoOTPStore struct {
	coll *mongo.Collection
}

func NewMongoOTPStore(db *mongo.Database) *MongoOTPStore {
	return &MongoOTPStore{coll: db.Collection(otpCollection)}
}

// EnsureIndexes creates the unique (phoneNumber, purpose) index, the token
// index and the retention TTL index.
func (s *MongoOTPStore) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "phoneNumber", Value: 1}, {Key: "purpose", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("phone_purpose"),
		},
		{
			Keys:    bson.D{{Key: "verificationToken", Value: 1}},
			Options: options.Index().SetName("verification_token"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())).SetName("created_at_ttl"),
		},
	})
	return err
}

func (s *MongoOTPStore) Upsert(ctx context.Context, rec *otp.Record) error {
	filter := bson.M{"phoneNumber": rec.PhoneNumber, "purpose": rec.Purpose.String()}
	update := bson.M{
		"$set": bson.M{
			"code":              rec.Code,
			"verificationToken": rec.VerificationToken,
			"expiresAt":         rec.ExpiresAt,
			"attempts":          0,
			"verified":          false,
			"createdAt":         rec.CreatedAt,
		},
		"$unset": bson.M{"verifiedAt": ""},
	}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (s *MongoOTPStore) Find(ctx context.Context, phone string, purpose otp.Purpose, token string) (*otp.Record, error) {
	var doc mongoOTP
	err := s.coll.FindOne(ctx, issuanceFilter(phone, purpose, token)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, otp.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.record(), nil
}

func (s *MongoOTPStore) IncrementAttempts(ctx context.Context, phone string, purpose otp.Purpose, token string, max int) (int, error) {
	filter := issuanceFilter(phone, purpose, token)
	filter["attempts"] = bson.M{"$lt": max}

	var doc mongoOTP
	err := s.coll.FindOneAndUpdate(ctx, filter,
		bson.M{"$inc": bson.M{"attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.Attempts, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, err
	}

	count, err := s.coll.CountDocuments(ctx, issuanceFilter(phone, purpose, token))
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, otp.ErrNotFound
	}
	return max, otp.ErrAttemptLimit
}

func (s *MongoOTPStore) MarkVerified(ctx context.Context, phone string, purpose otp.Purpose, token string, max int, at time.Time) error {
	filter := issuanceFilter(phone, purpose, token)
	filter["verified"] = false
	filter["attempts"] = bson.M{"$lt": max}
	filter["expiresAt"] = bson.M{"$gte": at}

	res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"verified": true, "verifiedAt": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return otp.ErrConflict
	}
	return nil
}

func (s *MongoOTPStore) Delete(ctx context.Context, phone string, purpose otp.Purpose) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"phoneNumber": phone, "purpose": purpose.String()})
	return err
}

func (s *MongoOTPStore) DeleteIssuance(ctx context.Context, phone string, purpose otp.Purpose, token string) error {
	_, err := s.coll.DeleteOne(ctx, issuanceFilter(phone, purpose, token))
	return err
}

func (s *MongoOTPStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func issuanceFilter(phone string, purpose otp.Purpose, token string) bson.M {
	return bson.M{"phoneNumber": phone, "purpose": purpose.String(), "verificationToken": token}
}

func (d *mongoOTP) record() *otp.Record {
	return &otp.Record{
		PhoneNumber:       d.PhoneNumber,
		Purpose:           otp.Purpose(d.Purpose),
		Code:              d.Code,
		VerificationToken: d.VerificationToken,
		ExpiresAt:         d.ExpiresAt,
		Attempts:          d.Attempts,
		Verified:          d.Verified,
		VerifiedAt:        d.VerifiedAt,
		CreatedAt:         d.CreatedAt,
	}
}
