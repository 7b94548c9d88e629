package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/skychatorg/skyplayer/internal/logger"
	"github.com/skychatorg/skyplayer/internal/models"
)

// snapshotRow is the storage form of one channel snapshot. The full sanitized
// channel is kept as a JSON document; id and name are lifted out for
// inspection with plain SQL.
type snapshotRow struct {
	ChannelID int       `gorm:"type:integer;primaryKey;column:channel_id"`
	Name      string    `gorm:"type:text;not null;column:name"`
	Document  string    `gorm:"type:text;not null;column:document"`
	UpdatedAt time.Time `gorm:"type:datetime;not null;column:updated_at"`
}

func (snapshotRow) TableName() string {
	return "channel_snapshots"
}

// SnapshotRepository persists the sanitized channel set. It implements the
// playback snapshot-store capability.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new snapshot repository instance
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save replaces the stored snapshot set with the given one atomically.
func (r *SnapshotRepository) Save(ctx context.Context, snapshots []models.ChannelSnapshot) error {
	rows := make([]snapshotRow, 0, len(snapshots))
	now := time.Now().UTC()
	for _, snap := range snapshots {
		doc, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot for channel %d: %w", snap.ID, err)
		}
		rows = append(rows, snapshotRow{
			ChannelID: snap.ID,
			Name:      snap.Name,
			Document:  string(doc),
			UpdatedAt: now,
		})
	}

	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&snapshotRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear snapshots: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert snapshots: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Log.Error().
			Err(err).
			Int("count", len(snapshots)).
			Msg("Failed to save channel snapshots")
		return fmt.Errorf("failed to save snapshots: %w", err)
	}

	logger.Log.Debug().
		Int("count", len(snapshots)).
		Msg("Channel snapshots saved")

	return nil
}

// Load reads every stored snapshot, ascending by channel id.
func (r *SnapshotRepository) Load(ctx context.Context) ([]models.ChannelSnapshot, error) {
	var rows []snapshotRow
	if err := r.db.WithContext(ctx).Order("channel_id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}

	snapshots := make([]models.ChannelSnapshot, 0, len(rows))
	for _, row := range rows {
		var snap models.ChannelSnapshot
		if err := json.Unmarshal([]byte(row.Document), &snap); err != nil {
			logger.Log.Warn().
				Err(err).
				Int("channel_id", row.ChannelID).
				Msg("Skipping undecodable channel snapshot")
			continue
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, nil
}
