package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindForFilename(t *testing.T) {
	cases := map[string]Kind{
		"clip.mp4":    KindVideo,
		"movie.MKV":   KindVideo,
		"photo.jpeg":  KindImage,
		"art.PNG":     KindImage,
		"music.mp3":   KindAudio,
		"track.m4a":   KindAudio,
	}
	for name, want := range cases {
		kind, ok := KindForFilename(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, kind, name)
	}

	for _, name := range []string{"doc.pdf", "archive.zip", "noext", ""} {
		_, ok := KindForFilename(name)
		assert.False(t, ok, name)
	}
}

func TestSanitizeTitle(t *testing.T) {
	t.Run("keeps safe characters and swaps spaces", func(t *testing.T) {
		assert.Equal(t, "My_Vacation_2024", SanitizeTitle("My Vacation 2024"))
		assert.Equal(t, "demo-cut_v2", SanitizeTitle("demo-cut_v2"))
	})

	t.Run("strips everything unsafe", func(t *testing.T) {
		assert.Equal(t, "clip", SanitizeTitle("../../etc/clip!?"))
		assert.Equal(t, "ab", SanitizeTitle("a/b"))
	})

	t.Run("falls back to the default base name", func(t *testing.T) {
		assert.Equal(t, DefaultTitle, SanitizeTitle(""))
		assert.Equal(t, DefaultTitle, SanitizeTitle("   "))
		assert.Equal(t, DefaultTitle, SanitizeTitle("!!!***"))
	})

	t.Run("truncates long titles", func(t *testing.T) {
		long := ""
		for i := 0; i < 100; i++ {
			long += "x"
		}
		assert.Len(t, SanitizeTitle(long), 64)
	})
}

func TestSanitizeUploadName(t *testing.T) {
	assert.Equal(t, "holiday_clip.mp4", SanitizeUploadName("holiday clip.mp4"))
	assert.Equal(t, "passwd", SanitizeUploadName("../../etc/passwd"))
	assert.Equal(t, "clip.mp4", SanitizeUploadName(`C:\videos\clip.mp4`))
	assert.Equal(t, "file", SanitizeUploadName("???"))
}

func TestSubtitleDuration(t *testing.T) {
	s := Subtitle{Text: "hello", Start: 2, End: 5}
	assert.Equal(t, 3.0, s.Duration())
}

func TestPresetByName(t *testing.T) {
	p, ok := PresetByName("720p")
	assert.True(t, ok)
	assert.Equal(t, 1280, p.Width)
	assert.Equal(t, 720, p.Height)

	_, ok = PresetByName("8k")
	assert.False(t, ok)
}

func TestParseExtraArgs(t *testing.T) {
	args, err := ParseExtraArgs(`-preset fast -x264-params "keyint=48"`)
	assert.NoError(t, err)
	assert.Equal(t, []string{"-preset", "fast", "-x264-params", "keyint=48"}, args)

	args, err = ParseExtraArgs("")
	assert.NoError(t, err)
	assert.Nil(t, args)

	_, err = ParseExtraArgs(`-vf "unterminated`)
	assert.Error(t, err)
}
