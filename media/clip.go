package media

import (
	"path/filepath"
	"strings"
)

// Kind classifies an uploaded asset by its file extension.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

var extKinds = map[string]Kind{
	".mp4": KindVideo, ".avi": KindVideo, ".mov": KindVideo, ".mkv": KindVideo, ".webm": KindVideo,
	".jpg": KindImage, ".jpeg": KindImage, ".png": KindImage, ".gif": KindImage, ".bmp": KindImage,
	".mp3": KindAudio, ".wav": KindAudio, ".aac": KindAudio, ".m4a": KindAudio, ".ogg": KindAudio,
}

// KindForFilename reports the asset kind for a filename, or false for
// unsupported extensions.
func KindForFilename(name string) (Kind, bool) {
	kind, ok := extKinds[strings.ToLower(filepath.Ext(name))]
	return kind, ok
}

// Clip describes one loaded media stream on disk. Engine operations
// take clips and return new clips pointing at scratch files.
type Clip struct {
	Path     string
	Duration float64 // seconds
	HasAudio bool
}

// Subtitle is one timed text overlay, rendered bottom-center and active
// for [Start, End).
type Subtitle struct {
	Text  string
	Start float64
	End   float64
}

// Duration returns the overlay's active time span.
func (s Subtitle) Duration() float64 {
	return s.End - s.Start
}
