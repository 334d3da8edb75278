package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/agriassist/internal/model"
	"github.com/LeonardoBeccarini/agriassist/internal/services/history"
	"github.com/LeonardoBeccarini/agriassist/pkg/dedup"
)

const DefaultUserID = "anonymous-user"

// FavoritesStore salva una coltura tra i preferiti dell'utente.
type FavoritesStore interface {
	Save(ctx context.Context, userID, plant string) (model.FavoriteAck, error)
}

// l'id utente finisce nel topic MQTT: niente wildcard né separatori
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,64}$`)

func normalizeFavorite(userID, plant string) (string, string, error) {
	plant = strings.TrimSpace(plant)
	if plant == "" {
		return "", "", model.NewValidationError("plant_name", "Plant name is required.")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = DefaultUserID
	}
	if !userIDPattern.MatchString(userID) {
		return "", "", model.NewValidationError("user_id", "Invalid user id.")
	}
	return userID, plant, nil
}

func favoriteAck(userID, plant string) model.FavoriteAck {
	return model.FavoriteAck{
		Success: true,
		Message: fmt.Sprintf("Plant %s saved as favorite for user %s. (Persistence logic not fully implemented yet.)", plant, userID),
	}
}

// LogFavorites non persiste nulla: registra la richiesta e conferma.
type LogFavorites struct {
	log *zap.Logger
}

func NewLogFavorites(logger *zap.Logger) *LogFavorites {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogFavorites{log: logger.Named("favorites")}
}

func (f *LogFavorites) Save(_ context.Context, userID, plant string) (model.FavoriteAck, error) {
	userID, plant, err := normalizeFavorite(userID, plant)
	if err != nil {
		return model.FavoriteAck{}, err
	}
	f.log.Info("saving favorite", zap.String("user", userID), zap.String("plant", plant))
	return favoriteAck(userID, plant), nil
}

// MQTTFavorites pubblica un FavoriteSaved su event/favorite/{user}.
// Click ripetuti sulla stessa coltura entro il ttl del deduper non ripubblicano.
type MQTTFavorites struct {
	pub   history.JSONPublisher
	dedup *dedup.Deduper
	log   *zap.Logger
	now   func() time.Time
}

func NewMQTTFavorites(pub history.JSONPublisher, d *dedup.Deduper, logger *zap.Logger) *MQTTFavorites {
	if d == nil {
		d = dedup.New(time.Minute, 10000)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTFavorites{pub: pub, dedup: d, log: logger.Named("favorites"), now: time.Now}
}

func (f *MQTTFavorites) Save(ctx context.Context, userID, plant string) (model.FavoriteAck, error) {
	userID, plant, err := normalizeFavorite(userID, plant)
	if err != nil {
		return model.FavoriteAck{}, err
	}
	key := dedup.Key(userID, strings.ToLower(plant))
	if !f.dedup.ShouldProcess(key) {
		f.log.Debug("duplicate favorite", zap.String("user", userID), zap.String("plant", plant))
		return favoriteAck(userID, plant), nil
	}

	evt := history.FavoriteSaved{UserID: userID, PlantName: plant, Timestamp: f.now().UTC()}
	if err := f.pub.PublishJSON(ctx, history.TopicFavoritePrefix+userID, evt); err != nil {
		f.dedup.Forget(key)
		f.log.Warn("favorite publish failed", zap.String("user", userID), zap.Error(err))
		return model.FavoriteAck{Success: false, Message: "Failed to save favorite plant."}, model.Unavailable("favorites", err)
	}
	f.log.Info("favorite saved", zap.String("user", userID), zap.String("plant", plant))
	return favoriteAck(userID, plant), nil
}
