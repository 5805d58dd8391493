package media

import (
	"fmt"

	"github.com/google/shlex"
)

// Preset is an opaque output quality setting passed through to the
// encoder: target resolution plus video/audio bitrates.
type Preset struct {
	Name         string
	Width        int
	Height       int
	VideoBitrate string
	AudioBitrate string
}

var presets = map[string]Preset{
	"480p":  {Name: "480p", Width: 854, Height: 480, VideoBitrate: "1200k", AudioBitrate: "128k"},
	"720p":  {Name: "720p", Width: 1280, Height: 720, VideoBitrate: "2500k", AudioBitrate: "128k"},
	"1080p": {Name: "1080p", Width: 1920, Height: 1080, VideoBitrate: "5000k", AudioBitrate: "192k"},
}

// PresetByName resolves a quality preset; the second return is false
// for unknown names.
func PresetByName(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// ParseExtraArgs securely splits the configured extra encoder argument
// string into an argument vector without involving a shell.
func ParseExtraArgs(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	args, err := shlex.Split(s)
	if err != nil {
		return nil, fmt.Errorf("invalid extra encoder args: %w", err)
	}
	return args, nil
}
