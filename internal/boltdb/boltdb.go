// Package boltdb keeps the download queue and the user's preferences in a single bbolt file.
package boltdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-leecher"
	"github.com/alanbriolat/video-leecher/internal/prefs"
	"github.com/alanbriolat/video-leecher/internal/session"
)

var Buckets = struct {
	Metadata    []byte
	Downloads   []byte
	Preferences []byte
}{
	Metadata:    []byte("__metadata__"),
	Downloads:   []byte("downloads"),
	Preferences: []byte("preferences"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

var PreferencesKeys = struct {
	Current []byte
}{
	Current: []byte("current"),
}

const currentVersion = 2

var (
	ErrNewerVersion = errors.New("database was written by a newer version")
)

type Database interface {
	Close() error

	session.Database
	prefs.Store
}

type database struct {
	*bbolt.DB
	log *zap.SugaredLogger
}

func New(path string) (Database, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open %v: %w", path, err)
	}
	d := &database{DB: db, log: zap.S().Named("boltdb").With("path", path)}
	if err := db.Update(d.upgrade); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// upgrade brings the database layout up to currentVersion.
func (d *database) upgrade(tx *bbolt.Tx) error {
	metadata, err := tx.CreateBucketIfNotExists(Buckets.Metadata)
	if err != nil {
		return err
	}
	version := 0
	if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes != nil {
		if err := json.Unmarshal(versionBytes, &version); err != nil {
			return fmt.Errorf("invalid database version: %w", err)
		}
	}
	if version > currentVersion {
		return fmt.Errorf("%w: %d", ErrNewerVersion, version)
	}
	if version < 1 {
		if _, err := tx.CreateBucketIfNotExists(Buckets.Downloads); err != nil {
			return err
		}
	}
	if version < 2 {
		if _, err := tx.CreateBucketIfNotExists(Buckets.Preferences); err != nil {
			return err
		}
	}
	if version != currentVersion {
		d.log.Infof("upgrading database from version %d to %d", version, currentVersion)
	}
	return putJSON(metadata, MetadataKeys.Version, currentVersion)
}

func (d *database) ListDownloads() (downloads []session.DownloadPersistentState, err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Downloads).ForEach(func(k, v []byte) error {
			var state session.DownloadPersistentState
			if err := json.Unmarshal(v, &state); err != nil {
				return fmt.Errorf("invalid download %q: %w", k, err)
			}
			downloads = append(downloads, state)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return downloads, nil
}

func (d *database) WriteDownload(state *session.DownloadPersistentState) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(Buckets.Downloads), []byte(state.ID), state)
	})
}

func (d *database) DeleteDownload(state *session.DownloadPersistentState) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Downloads).Delete([]byte(state.ID))
	})
}

func (d *database) LoadPreferences() (p *video_leecher.Preferences, err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(Buckets.Preferences).Get(PreferencesKeys.Current)
		if data == nil {
			return nil
		}
		p = &video_leecher.Preferences{}
		return json.Unmarshal(data, p)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid stored preferences: %w", err)
	}
	return p, nil
}

func (d *database) SavePreferences(p *video_leecher.Preferences) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(Buckets.Preferences), PreferencesKeys.Current, p)
	})
}

func putJSON(bucket *bbolt.Bucket, key []byte, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return bucket.Put(key, data)
}
