package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Borislavv/notion-widget-cache/pkg/config"
	"github.com/Borislavv/notion-widget-cache/pkg/model"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	widgetsCollection    = "widgets"
	defaultMongoDatabase = "widgets"
	mongoConnectTimeout  = 5 * time.Second
)

type widgetDocument struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty"`
	Slug       string               `bson:"slug"`
	Token      string               `bson:"token"`
	DatabaseID string               `bson:"databaseId"`
	IsActive   bool                 `bson:"isActive"`
	Settings   model.WidgetSettings `bson:"settings"`
	CreatedAt  time.Time            `bson:"createdAt"`
}

func (d widgetDocument) toModel() *model.Widget {
	return &model.Widget{
		ID:         d.ID.Hex(),
		Slug:       d.Slug,
		Token:      d.Token,
		DatabaseID: d.DatabaseID,
		IsActive:   d.IsActive,
		Settings:   d.Settings,
	}
}

type MongoWidgets struct {
	collection *mongo.Collection
}

func NewMongoWidgets(db *mongo.Database) *MongoWidgets {
	return &MongoWidgets{collection: db.Collection(widgetsCollection)}
}

// ConnectMongo opens a client and pings the primary before returning the widgets database.
func ConnectMongo(ctx context.Context, cfg config.Repository) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	name := cfg.MongoDatabase
	if name == "" {
		name = defaultMongoDatabase
	}
	log.Info().Str("database", name).Msg("[repository] mongo connected")
	return client, client.Database(name), nil
}

func (r *MongoWidgets) GetBySlug(ctx context.Context, slug string) (*model.Widget, error) {
	var doc widgetDocument
	err := r.collection.FindOne(ctx, bson.M{"slug": slug}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("find widget %q: %w", slug, err)
	}
	return doc.toModel(), nil
}
