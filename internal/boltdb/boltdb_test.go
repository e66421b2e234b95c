package boltdb

import (
	"path/filepath"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/alanbriolat/video-leecher"
	"github.com/alanbriolat/video-leecher/internal/session"
)

func open(t *testing.T, path string) Database {
	db, err := New(path)
	require_.NoError(t, err)
	return db
}

func TestDatabase_Downloads(t *testing.T) {
	assert := assert_.New(t)
	path := filepath.Join(t.TempDir(), "test.db")
	db := open(t, path)

	list, err := db.ListDownloads()
	assert.Nil(err)
	assert.Empty(list)

	state := session.DownloadPersistentState{
		ID: "d1",
		Job: video_leecher.DownloadJob{
			Video:    video_leecher.Video{ID: "v1", Qualities: []video_leecher.Quality{{ID: "source"}}},
			Folder:   "/downloads",
			Filename: "v1.mp4",
		},
		AddedAt: time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC),
		Status:  session.DownloadStatusQueued,
	}
	assert.Nil(db.WriteDownload(&state))
	state.Status = session.DownloadStatusComplete
	assert.Nil(db.WriteDownload(&state))

	// Survives reopening
	assert.Nil(db.Close())
	db = open(t, path)
	defer db.Close()
	list, err = db.ListDownloads()
	assert.Nil(err)
	assert.Equal([]session.DownloadPersistentState{state}, list)

	assert.Nil(db.DeleteDownload(&state))
	list, err = db.ListDownloads()
	assert.Nil(err)
	assert.Empty(list)
}

func TestDatabase_Preferences(t *testing.T) {
	assert := assert_.New(t)
	path := filepath.Join(t.TempDir(), "test.db")
	db := open(t, path)

	p, err := db.LoadPreferences()
	assert.Nil(err)
	assert.Nil(p)

	saved := video_leecher.DefaultPreferences("/downloads")
	saved.SearchFavouriteChannels = []string{"one"}
	assert.Nil(db.SavePreferences(&saved))
	assert.Nil(db.Close())

	db = open(t, path)
	defer db.Close()
	p, err = db.LoadPreferences()
	assert.Nil(err)
	assert.Equal(&saved, p)
}

func TestDatabase_Upgrade(t *testing.T) {
	assert := assert_.New(t)
	path := filepath.Join(t.TempDir(), "test.db")

	// A version 1 database only had downloads
	raw, err := bbolt.Open(path, 0600, nil)
	require_.NoError(t, err)
	require_.NoError(t, raw.Update(func(tx *bbolt.Tx) error {
		metadata, err := tx.CreateBucket(Buckets.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucket(Buckets.Downloads); err != nil {
			return err
		}
		return metadata.Put(MetadataKeys.Version, []byte("1"))
	}))
	require_.NoError(t, raw.Close())

	db := open(t, path)
	p, err := db.LoadPreferences()
	assert.Nil(err)
	assert.Nil(p)
	assert.Nil(db.Close())

	// A newer database is refused
	raw, err = bbolt.Open(path, 0600, nil)
	require_.NoError(t, err)
	require_.NoError(t, raw.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Metadata).Put(MetadataKeys.Version, []byte("99"))
	}))
	require_.NoError(t, raw.Close())
	_, err = New(path)
	assert.ErrorIs(err, ErrNewerVersion)
}
