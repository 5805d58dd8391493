package jobs

import (
	"fmt"
	"os"
	"path/filepath"

	"clipforge/media"
	"clipforge/task"
)

// FileRef points at one uploaded asset by its stored filename. Type is
// optional; when blank it is inferred from the extension.
type FileRef struct {
	Filename string  `json:"filename"`
	Type     string  `json:"type,omitempty"`
	Duration float64 `json:"duration,omitempty"` // image display time, seconds
}

// SubtitleRef is one timed overlay in a create_final_video request.
type SubtitleRef struct {
	Text  string  `json:"text"`
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

// Request is the JSON body of POST /process. Fields are
// operation-specific; validate enforces which ones each operation
// needs.
type Request struct {
	Operation string    `json:"operation"`
	Files     []FileRef `json:"files,omitempty"`

	// add_audio / add_subtitle single-video shorthand.
	VideoFile string `json:"video_file,omitempty"`

	AudioFile    string  `json:"audio_file,omitempty"`
	SubtitleText string  `json:"subtitle_text,omitempty"`
	StartTime    float64 `json:"start_time,omitempty"`
	EndTime      float64 `json:"end_time,omitempty"`

	// create_final_video extras.
	BackgroundAudio string        `json:"background_audio,omitempty"`
	Subtitles       []SubtitleRef `json:"subtitles,omitempty"`
	Quality         string        `json:"quality,omitempty"`
	Title           string        `json:"title,omitempty"`
}

func (r *Runner) uploadPath(filename string) string {
	return filepath.Join(r.cfg.UploadDir, filepath.Base(filename))
}

func (r *Runner) checkUpload(filename string, want ...media.Kind) (media.Kind, error) {
	if filename == "" {
		return "", fmt.Errorf("missing filename")
	}
	kind, ok := media.KindForFilename(filename)
	if !ok {
		return "", fmt.Errorf("unsupported file type: %s", filename)
	}
	allowed := false
	for _, w := range want {
		if kind == w {
			allowed = true
		}
	}
	if !allowed {
		return "", fmt.Errorf("%s is a %s file, which this operation does not accept", filename, kind)
	}
	if _, err := os.Stat(r.uploadPath(filename)); err != nil {
		return "", fmt.Errorf("uploaded file not found: %s", filepath.Base(filename))
	}
	return kind, nil
}

// validate normalizes the request (folding video_file into Files) and
// rejects anything a job must not be spawned for.
func (r *Runner) validate(op task.Operation, req *Request) error {
	if req.VideoFile != "" && len(req.Files) == 0 {
		req.Files = []FileRef{{Filename: req.VideoFile}}
	}

	checkClips := func(min int) error {
		if len(req.Files) < min {
			return fmt.Errorf("at least %d input file(s) required", min)
		}
		for i := range req.Files {
			kind, err := r.checkUpload(req.Files[i].Filename, media.KindVideo, media.KindImage)
			if err != nil {
				return err
			}
			if req.Files[i].Type == "" {
				req.Files[i].Type = string(kind)
			}
		}
		return nil
	}

	switch op {
	case task.OpConcatenate:
		return checkClips(2)

	case task.OpAddAudio:
		if err := checkClips(1); err != nil {
			return err
		}
		_, err := r.checkUpload(req.AudioFile, media.KindAudio)
		return err

	case task.OpAddSubtitle:
		if err := checkClips(1); err != nil {
			return err
		}
		if len(req.Files) != 1 || req.Files[0].Type != string(media.KindVideo) {
			return fmt.Errorf("add_subtitle takes exactly one video file")
		}
		if req.SubtitleText == "" {
			return fmt.Errorf("subtitle_text is required")
		}
		if req.StartTime < 0 || req.EndTime <= req.StartTime {
			return fmt.Errorf("subtitle time window [%v, %v) is invalid", req.StartTime, req.EndTime)
		}
		return nil

	case task.OpCreateFinalVideo:
		if err := checkClips(1); err != nil {
			return err
		}
		if req.BackgroundAudio != "" {
			if _, err := r.checkUpload(req.BackgroundAudio, media.KindAudio); err != nil {
				return err
			}
		}
		for _, s := range req.Subtitles {
			if s.Text == "" {
				return fmt.Errorf("subtitle text must not be empty")
			}
			if s.Start < 0 || s.End <= s.Start {
				return fmt.Errorf("subtitle time window [%v, %v) is invalid", s.Start, s.End)
			}
		}
		if req.Quality == "" {
			req.Quality = r.cfg.DefaultQuality
		}
		if _, ok := media.PresetByName(req.Quality); !ok {
			return fmt.Errorf("unknown quality preset: %s", req.Quality)
		}
		return nil
	}
	return fmt.Errorf("unsupported operation: %s", op)
}
