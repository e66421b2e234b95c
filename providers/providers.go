// Package providers registers every built-in provider with video_leecher.DefaultProviderRegistry when imported.
package providers

import (
	_ "github.com/alanbriolat/video-leecher/provider/raw"
	_ "github.com/alanbriolat/video-leecher/provider/youtube"
)
