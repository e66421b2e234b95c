package video_leecher

import (
	"fmt"
	"path/filepath"
)

// A DownloadJob is everything the download queue needs to fetch one video.
type DownloadJob struct {
	Video             Video    `json:"video"`
	Auth              AuthInfo `json:"auth"`
	Quality           Quality  `json:"quality"`
	Folder            string   `json:"folder"`
	Filename          string   `json:"filename"`
	DisableConversion bool     `json:"disable_conversion"`
}

func (j *DownloadJob) FullPath() string {
	return filepath.Join(j.Folder, j.Filename)
}

func (j *DownloadJob) String() string {
	return fmt.Sprintf("DownloadJob{Video:%q, Quality:%q, Path:%q}", j.Video.ID, j.Quality, j.FullPath())
}

// NewDownloadJob builds the job for a video from a preferences snapshot. The result depends only on the arguments, so
// the same snapshot and favourite status always give the same destination path.
func NewDownloadJob(prefs *Preferences, favourite bool, filenames FilenameService, video *Video, auth AuthInfo) (*DownloadJob, error) {
	quality, err := video.DefaultQuality()
	if err != nil {
		return nil, err
	}
	filename, err := filenames.SubstituteWildcards(prefs.DownloadFilename, video)
	if err != nil {
		return nil, err
	}
	filename = filenames.EnsureExtension(filename, prefs.DownloadDisableConversion)
	return &DownloadJob{
		Video:             *video,
		Auth:              auth,
		Quality:           quality,
		Folder:            prefs.DownloadFolderFor(video.Channel, favourite),
		Filename:          filename,
		DisableConversion: prefs.DownloadDisableConversion,
	}, nil
}
