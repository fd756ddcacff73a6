package extract

import (
	"strings"

	"github.com/diegosardonpro/runa-curator/models"
)

// Media and binary file extensions that disqualify a URL from article
// curation.
var mediaExtensions = []string{
	".mp3", ".wav", ".ogg", ".flac", ".aac", ".m4a", ".wma", ".opus",
	".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".mpeg", ".mpg",
}

var documentExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".zip", ".rar", ".tar", ".gz",
}

var imageFileExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".bmp",
}

// Streaming platforms whose pages are never textual articles.
var streamingHosts = []string{
	"youtube.com", "youtu.be", "vimeo.com", "dailymotion.com",
	"twitch.tv", "soundcloud.com", "spotify.com", "music.apple.com",
}

// ClassifyURL assigns an asset type to a URL from its shape alone. The
// orchestrator checks the result against its allow-list; anything but an
// article is marked unsupported before rendering work is spent on it.
func ClassifyURL(rawURL string) string {
	urlLower := strings.ToLower(rawURL)

	for _, host := range streamingHosts {
		if strings.Contains(urlLower, host) {
			return models.AssetTypeMedia
		}
	}
	if hasExtension(urlLower, mediaExtensions) {
		return models.AssetTypeMedia
	}
	if hasExtension(urlLower, imageFileExtensions) {
		return models.AssetTypeImage
	}
	if hasExtension(urlLower, documentExtensions) {
		return models.AssetTypeDocument
	}

	return models.AssetTypeArticle
}

func hasExtension(urlLower string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(urlLower, ext) || strings.Contains(urlLower, ext+"?") {
			return true
		}
	}
	return false
}
