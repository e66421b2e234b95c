// Package catalog is the local catalogue of known videos, searchable by channel and ID.
package catalog

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"moul.io/zapgorm2"

	"github.com/alanbriolat/video-leecher"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var (
	ErrNotFound = errors.New("video not found")
)

// An Entry is a video along with what the catalogue knows about who may download it.
type Entry struct {
	video_leecher.Video
	video_leecher.AuthInfo
}

type videoRow struct {
	ID            string `gorm:"primaryKey"`
	Title         string
	Channel       string
	ChannelFolded string
	Game          string
	URL           string `gorm:"column:url"`
	RecordedAt    time.Time
	LengthSeconds int64
	Qualities     string
	SubOnly       bool
	Privileged    bool
}

func (videoRow) TableName() string {
	return "videos"
}

func newVideoRow(e *Entry) (*videoRow, error) {
	qualities, err := json.Marshal(e.Qualities)
	if err != nil {
		return nil, err
	}
	return &videoRow{
		ID:            string(e.ID),
		Title:         e.Title,
		Channel:       e.Channel,
		ChannelFolded: foldChannel(e.Channel),
		Game:          e.Game,
		URL:           e.URL,
		RecordedAt:    e.RecordedAt.UTC(),
		LengthSeconds: int64(e.Length / time.Second),
		Qualities:     string(qualities),
		SubOnly:       e.SubOnly,
		Privileged:    e.Privileged,
	}, nil
}

func (r *videoRow) video() (*video_leecher.Video, error) {
	v := &video_leecher.Video{
		ID:         video_leecher.VideoID(r.ID),
		Title:      r.Title,
		Channel:    r.Channel,
		Game:       r.Game,
		URL:        r.URL,
		RecordedAt: r.RecordedAt,
		Length:     time.Duration(r.LengthSeconds) * time.Second,
	}
	if err := json.Unmarshal([]byte(r.Qualities), &v.Qualities); err != nil {
		return nil, fmt.Errorf("invalid qualities for %v: %w", r.ID, err)
	}
	return v, nil
}

type Catalog struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// Open opens (creating if necessary) the catalogue database at path and brings its schema up to date.
func Open(path string) (*Catalog, error) {
	log := zap.S().Named("catalog").With("path", path)
	logger := zapgorm2.New(zap.L().Named("gorm"))
	logger.SetAsDefault()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalogue: %w", err)
	}
	c := &Catalog{db: db, log: log}
	if err := c.migrate(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	fs, err := iofs.New(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", fs, "sqlite3", driver)
	if err != nil {
		return err
	}
	switch err := m.Up(); err {
	case nil:
		c.log.Info("catalogue migration complete")
	case migrate.ErrNoChange:
		c.log.Debug("no catalogue migration required")
	default:
		return fmt.Errorf("catalogue migration failed: %w", err)
	}
	return nil
}

func (c *Catalog) Close() {
	if sqlDB, err := c.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Columns describing the video itself, as opposed to who may download it.
var videoColumns = []string{
	"title", "channel", "channel_folded", "game", "url", "recorded_at", "length_seconds", "qualities",
}

// Import adds entries to the catalogue, replacing any existing entries with the same ID.
func (c *Catalog) Import(ctx context.Context, entries ...Entry) error {
	err := c.upsert(ctx, clause.OnConflict{UpdateAll: true}, entries)
	if err != nil {
		return fmt.Errorf("failed to import videos: %w", err)
	}
	c.log.Infof("imported %d videos", len(entries))
	return nil
}

// Remember adds or refreshes videos found elsewhere. A video already in the catalogue keeps its AuthInfo; a new one is
// public.
func (c *Catalog) Remember(ctx context.Context, videos ...*video_leecher.Video) error {
	entries := make([]Entry, 0, len(videos))
	for _, v := range videos {
		entries = append(entries, Entry{Video: *v})
	}
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(videoColumns),
	}
	if err := c.upsert(ctx, onConflict, entries); err != nil {
		return fmt.Errorf("failed to remember videos: %w", err)
	}
	c.log.Debugf("remembered %d videos", len(entries))
	return nil
}

func (c *Catalog) upsert(ctx context.Context, onConflict clause.OnConflict, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*videoRow, 0, len(entries))
	for i := range entries {
		if entries[i].ID == "" {
			return fmt.Errorf("entry %d has no ID", i)
		}
		row, err := newVideoRow(&entries[i])
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return c.db.WithContext(ctx).Clauses(onConflict).Create(&rows).Error
}

// ByChannel returns up to limit of the channel's videos, newest first. Channel names match case-insensitively.
func (c *Catalog) ByChannel(ctx context.Context, channel string, limit int) ([]*video_leecher.Video, error) {
	var rows []videoRow
	err := c.db.WithContext(ctx).
		Where("channel_folded = ?", foldChannel(channel)).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toVideos(rows)
}

func (c *Catalog) ByID(ctx context.Context, id video_leecher.VideoID) (*video_leecher.Video, error) {
	row, err := c.row(ctx, id)
	if err != nil {
		return nil, err
	}
	return row.video()
}

// ByIDs returns the videos in the same order as ids, leaving out any that aren't in the catalogue.
func (c *Catalog) ByIDs(ctx context.Context, ids []video_leecher.VideoID) ([]*video_leecher.Video, error) {
	var rows []videoRow
	if err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[video_leecher.VideoID]videoRow, len(rows))
	for _, r := range rows {
		byID[video_leecher.VideoID(r.ID)] = r
	}
	ordered := make([]videoRow, 0, len(rows))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}
	return toVideos(ordered)
}

// Channels lists every channel name in the catalogue.
func (c *Catalog) Channels(ctx context.Context) ([]string, error) {
	var channels []string
	err := c.db.WithContext(ctx).Model(&videoRow{}).Distinct("channel").Order("channel").Pluck("channel", &channels).Error
	return channels, err
}

func (c *Catalog) AuthInfo(ctx context.Context, id video_leecher.VideoID) (video_leecher.AuthInfo, error) {
	row, err := c.row(ctx, id)
	if err != nil {
		return video_leecher.AuthInfo{}, err
	}
	return video_leecher.AuthInfo{SubOnly: row.SubOnly, Privileged: row.Privileged}, nil
}

func (c *Catalog) row(ctx context.Context, id video_leecher.VideoID) (*videoRow, error) {
	var rows []videoRow
	if err := c.db.WithContext(ctx).Where("id = ?", string(id)).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	} else if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, id)
	}
	return &rows[0], nil
}

func toVideos(rows []videoRow) ([]*video_leecher.Video, error) {
	videos := make([]*video_leecher.Video, 0, len(rows))
	for i := range rows {
		v, err := rows[i].video()
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, nil
}

func foldChannel(channel string) string {
	return cases.Fold().String(channel)
}
