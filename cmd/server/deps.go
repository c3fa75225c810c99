package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/example/clinic/internal/config"
	"github.com/example/clinic/internal/database"
	"github.com/example/clinic/internal/otp"
	"github.com/example/clinic/internal/services"
)

// deps holds the long-lived connections shared by the commands.
type deps struct {
	DB         *gorm.DB
	Mongo      *mongo.Client
	Redis      *redis.Client
	Store      otp.Store
	Sonali     *services.SonaliSMS
	Dispatcher otp.Dispatcher
	log        zerolog.Logger
}

// newDeps connects what the configuration asks for. Postgres is opened for
// every store except memory because it also holds accounts.
func newDeps(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*deps, error) {
	d := &deps{log: log}

	if cfg.OTPStore != "memory" {
		db, err := database.Connect(cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		d.DB = db
	}

	if cfg.RedisAddr != "" {
		rdb, err := database.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Redis = rdb
	}

	switch cfg.OTPStore {
	case "postgres":
		d.Store = database.NewOTPStore(d.DB)
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := database.ConnectMongo(connectCtx, cfg.MongoURI)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Mongo = client
		store := database.NewMongoOTPStore(client.Database(cfg.MongoDatabase))
		if err := store.EnsureIndexes(connectCtx, cfg.OTPRetention); err != nil {
			d.Close()
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		d.Store = store
	case "redis":
		d.Store = database.NewRedisOTPStore(d.Redis, cfg.OTPRetention)
	case "memory":
		d.Store = otp.NewMemoryStore()
	}

	var provider otp.Dispatcher
	switch cfg.SMSProvider {
	case "boomcast":
		provider = services.NewBoomcast(services.BoomcastConfig{
			URL:      cfg.BoomcastURL,
			Username: cfg.BoomcastUsername,
			Password: cfg.BoomcastPassword,
			Masking:  cfg.BoomcastMasking,
			Timeout:  cfg.SMSTimeout,
		}, log)
	default:
		d.Sonali = newSonali(cfg, log)
		provider = d.Sonali
	}

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, log)
	if telegram.Enabled() {
		provider = services.NewAlertingDispatcher(provider, telegram, cfg.SMSProvider, log)
	}
	d.Dispatcher = provider

	return d, nil
}

func newSonali(cfg *config.Config, log zerolog.Logger) *services.SonaliSMS {
	return services.NewSonaliSMS(services.SonaliConfig{
		APIKey:     cfg.SMSAPIKey,
		SecretKey:  cfg.SMSSecretKey,
		SenderID:   cfg.SMSSenderID,
		SendURL:    cfg.SMSSendURL,
		StatusURL:  cfg.SMSStatusURL,
		BalanceURL: cfg.SMSBalanceURL,
		Timeout:    cfg.SMSTimeout,
	}, log)
}

// Close releases every open connection.
func (d *deps) Close() {
	if d.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.Mongo.Disconnect(ctx); err != nil {
			d.log.Warn().Err(err).Msg("mongo disconnect")
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.log.Warn().Err(err).Msg("redis close")
		}
	}
	if d.DB != nil {
		if sqlDB, err := d.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
