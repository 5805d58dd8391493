package media

import "context"

// Engine is the external media collaborator. Every call is a blocking,
// CPU/IO-bound invocation of the codec toolchain: it takes clip
// descriptors and returns a new descriptor pointing at a scratch file,
// or writes a final output file. Job runners call it stepwise and treat
// its behavior as opaque.
type Engine interface {
	// CheckResources reports whether the host has enough idle CPU,
	// free memory and free disk to start another job.
	CheckResources() error

	// LoadClip probes a video file, or renders a still image into a
	// silent video segment of the given duration.
	LoadClip(ctx context.Context, path string, kind Kind, imageDuration float64) (Clip, error)

	// LoadAudio probes an audio track.
	LoadAudio(ctx context.Context, path string) (Clip, error)

	// Concat joins clips in input order into one video clip.
	Concat(ctx context.Context, clips []Clip) (Clip, error)

	// FitAudio produces an audio clip of exactly the given duration,
	// truncating a longer track or seamlessly looping a shorter one.
	FitAudio(ctx context.Context, audio Clip, duration float64) (Clip, error)

	// ReplaceAudio attaches the audio track to the video, discarding
	// any original audio.
	ReplaceAudio(ctx context.Context, video, audio Clip) (Clip, error)

	// MixAudio blends the video's own audio with a background track
	// using the given weights.
	MixAudio(ctx context.Context, video, background Clip, videoWeight, backgroundWeight float64) (Clip, error)

	// OverlaySubtitles composites timed text overlays onto the video.
	OverlaySubtitles(ctx context.Context, video Clip, subs []Subtitle) (Clip, error)

	// Encode writes the final output file under the given preset.
	Encode(ctx context.Context, clip Clip, preset Preset, outputPath string) error
}
