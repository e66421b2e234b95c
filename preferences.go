package video_leecher

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
)

const DefaultFilenameTemplate = `{{ date .RecordedAt }}_{{ .ID }}_{{ .Title }}`

var (
	ErrNoDownloadFolder   = errors.New("download folder must be set")
	ErrNoFilenameTemplate = errors.New("download filename template must be set")
	ErrNoExternalPlayer   = errors.New("external player must be set when enabled")
	ErrInvalidSearchLimit = errors.New("search limit must be positive")
)

type Preferences struct {
	DownloadFolder            string   `json:"download_folder"`
	DownloadFilename          string   `json:"download_filename"`
	DownloadSubfoldersForFav  bool     `json:"download_subfolders_for_fav"`
	DownloadDisableConversion bool     `json:"download_disable_conversion"`
	MiscUseExternalPlayer     bool     `json:"misc_use_external_player"`
	MiscExternalPlayer        string   `json:"misc_external_player"`
	SearchChannelName         string   `json:"search_channel_name"`
	SearchFavouriteChannels   []string `json:"search_favourite_channels"`
	SearchLimit               int      `json:"search_limit"`
}

func DefaultPreferences(downloadFolder string) Preferences {
	return Preferences{
		DownloadFolder:   downloadFolder,
		DownloadFilename: DefaultFilenameTemplate,
		SearchLimit:      50,
	}
}

// Clone returns a deep copy, so the snapshot can't be changed by later edits to the original.
func (p Preferences) Clone() Preferences {
	c := p
	if p.SearchFavouriteChannels != nil {
		c.SearchFavouriteChannels = make([]string, len(p.SearchFavouriteChannels))
		copy(c.SearchFavouriteChannels, p.SearchFavouriteChannels)
	}
	return c
}

// Validate returns every problem with the preferences, or nil.
func (p *Preferences) Validate() error {
	var result error
	if strings.TrimSpace(p.DownloadFolder) == "" {
		result = multierror.Append(result, ErrNoDownloadFolder)
	}
	if strings.TrimSpace(p.DownloadFilename) == "" {
		result = multierror.Append(result, ErrNoFilenameTemplate)
	}
	if p.MiscUseExternalPlayer && strings.TrimSpace(p.MiscExternalPlayer) == "" {
		result = multierror.Append(result, ErrNoExternalPlayer)
	}
	if p.SearchLimit <= 0 {
		result = multierror.Append(result, ErrInvalidSearchLimit)
	}
	return result
}

// DownloadFolderFor gives the folder a channel's downloads are saved into. The subfolder is always directly inside
// the download folder, whatever the channel is called.
func (p *Preferences) DownloadFolderFor(channel string, favourite bool) string {
	if p.DownloadSubfoldersForFav && favourite {
		if sub := SanitizeFilename(channel); sub != "" {
			return filepath.Join(p.DownloadFolder, sub)
		}
	}
	return p.DownloadFolder
}
