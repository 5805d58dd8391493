package media

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipforge/config"

	"github.com/lithammer/shortuuid/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// FFmpeg implements Engine by shelling out to ffmpeg/ffprobe. Each
// operation materializes its result as a new file in the scratch
// directory; intermediate encodes use a fast preset and the final
// Encode applies the requested quality preset.
type FFmpeg struct {
	cfg        *config.Config
	scratchDir string
	extraArgs  []string
}

func NewFFmpeg(cfg *config.Config) (*FFmpeg, error) {
	if _, err := exec.LookPath(cfg.FFBin); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found or not in PATH: %s", cfg.FFBin)
	}
	if _, err := exec.LookPath(cfg.FFProbeBin); err != nil {
		return nil, fmt.Errorf("ffprobe binary not found or not in PATH: %s", cfg.FFProbeBin)
	}

	extraArgs, err := ParseExtraArgs(cfg.ExtraEncodeArgs)
	if err != nil {
		return nil, err
	}

	// Scratch holds transient encode artifacts and is cleared on start.
	scratchDir := cfg.ScratchDir
	if scratchDir == "" {
		scratchDir, err = os.MkdirTemp("", "clipforge_")
		if err != nil {
			return nil, fmt.Errorf("could not create scratch directory: %w", err)
		}
	} else {
		if err := os.RemoveAll(scratchDir); err != nil {
			return nil, fmt.Errorf("could not clear scratch directory: %w", err)
		}
		if err := os.MkdirAll(scratchDir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create scratch directory: %w", err)
		}
	}
	log.Printf("Using scratch directory: %s", scratchDir)

	return &FFmpeg{cfg: cfg, scratchDir: scratchDir, extraArgs: extraArgs}, nil
}

func (f *FFmpeg) scratchPath(ext string) string {
	return filepath.Join(f.scratchDir, shortuuid.New()+ext)
}

// run executes a toolchain binary, capturing combined output for error
// reporting.
func (f *FFmpeg) run(ctx context.Context, bin string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var outputBuf bytes.Buffer
	cmd.Stdout = &outputBuf
	cmd.Stderr = &outputBuf

	err := cmd.Run()
	outputLog := outputBuf.String()
	if err != nil {
		return outputLog, fmt.Errorf("%s failed: %w: %s", filepath.Base(bin), err, tail(outputLog))
	}
	return outputLog, nil
}

// tail keeps error messages readable when ffmpeg dumps pages of output.
func tail(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > 4 {
		lines = lines[len(lines)-4:]
	}
	return strings.Join(lines, " | ")
}

// probe reads a file's duration and whether it carries an audio stream.
func (f *FFmpeg) probe(ctx context.Context, path string) (float64, bool, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-show_entries", "stream=codec_type",
		"-of", "default=noprint_wrappers=1",
		path,
	}
	out, err := f.run(ctx, f.cfg.FFProbeBin, args)
	if err != nil {
		return 0, false, err
	}

	var duration float64
	var hasAudio bool
	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		switch key {
		case "duration":
			if d, err := strconv.ParseFloat(value, 64); err == nil && d > duration {
				duration = d
			}
		case "codec_type":
			if value == "audio" {
				hasAudio = true
			}
		}
	}
	if duration <= 0 {
		return 0, false, fmt.Errorf("could not determine duration of %s", filepath.Base(path))
	}
	return duration, hasAudio, nil
}

func (f *FFmpeg) LoadClip(ctx context.Context, path string, kind Kind, imageDuration float64) (Clip, error) {
	switch kind {
	case KindVideo:
		duration, hasAudio, err := f.probe(ctx, path)
		if err != nil {
			return Clip{}, err
		}
		return Clip{Path: path, Duration: duration, HasAudio: hasAudio}, nil

	case KindImage:
		if imageDuration <= 0 {
			return Clip{}, fmt.Errorf("image clip needs a positive duration")
		}
		out := f.scratchPath(".mp4")
		args := []string{
			"-y",
			"-loop", "1",
			"-t", formatFloat(imageDuration),
			"-i", path,
			"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2,format=yuv420p",
			"-r", "25",
			"-an",
			"-c:v", "libx264", "-preset", "veryfast",
			out,
		}
		if _, err := f.run(ctx, f.cfg.FFBin, args); err != nil {
			return Clip{}, err
		}
		return Clip{Path: out, Duration: imageDuration, HasAudio: false}, nil
	}
	return Clip{}, fmt.Errorf("cannot load %s as a visual clip", kind)
}

func (f *FFmpeg) LoadAudio(ctx context.Context, path string) (Clip, error) {
	duration, _, err := f.probe(ctx, path)
	if err != nil {
		return Clip{}, err
	}
	return Clip{Path: path, Duration: duration, HasAudio: true}, nil
}

func (f *FFmpeg) Concat(ctx context.Context, clips []Clip) (Clip, error) {
	if len(clips) == 0 {
		return Clip{}, fmt.Errorf("no clips to concatenate")
	}
	if len(clips) == 1 {
		return clips[0], nil
	}

	args := []string{"-y"}
	var total float64
	for _, c := range clips {
		args = append(args, "-i", c.Path)
		total += c.Duration
	}

	// Silent clips get a matching null audio source so every concat
	// segment carries both streams.
	silenceIndex := make(map[int]int)
	next := len(clips)
	for i, c := range clips {
		if !c.HasAudio {
			args = append(args,
				"-f", "lavfi",
				"-t", formatFloat(c.Duration),
				"-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
			)
			silenceIndex[i] = next
			next++
		}
	}

	var filter strings.Builder
	for i, c := range clips {
		filter.WriteString(fmt.Sprintf("[%d:v:0]", i))
		if c.HasAudio {
			filter.WriteString(fmt.Sprintf("[%d:a:0]", i))
		} else {
			filter.WriteString(fmt.Sprintf("[%d:a:0]", silenceIndex[i]))
		}
	}
	filter.WriteString(fmt.Sprintf("concat=n=%d:v=1:a=1[v][a]", len(clips)))

	out := f.scratchPath(".mp4")
	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[v]", "-map", "[a]",
		"-c:v", "libx264", "-preset", "veryfast",
		"-c:a", "aac",
		out,
	)
	if _, err := f.run(ctx, f.cfg.FFBin, args); err != nil {
		return Clip{}, err
	}
	return Clip{Path: out, Duration: total, HasAudio: true}, nil
}

func (f *FFmpeg) FitAudio(ctx context.Context, audio Clip, duration float64) (Clip, error) {
	if duration <= 0 {
		return Clip{}, fmt.Errorf("target duration must be positive")
	}
	out := f.scratchPath(".m4a")
	args := []string{"-y"}
	if audio.Duration < duration {
		// Loop a short track, then cut at the exact target.
		args = append(args, "-stream_loop", "-1")
	}
	args = append(args,
		"-i", audio.Path,
		"-t", formatFloat(duration),
		"-c:a", "aac",
		out,
	)
	if _, err := f.run(ctx, f.cfg.FFBin, args); err != nil {
		return Clip{}, err
	}
	return Clip{Path: out, Duration: duration, HasAudio: true}, nil
}

func (f *FFmpeg) ReplaceAudio(ctx context.Context, video, audio Clip) (Clip, error) {
	out := f.scratchPath(".mp4")
	args := []string{
		"-y",
		"-i", video.Path,
		"-i", audio.Path,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		out,
	}
	if _, err := f.run(ctx, f.cfg.FFBin, args); err != nil {
		return Clip{}, err
	}
	return Clip{Path: out, Duration: video.Duration, HasAudio: true}, nil
}

func (f *FFmpeg) MixAudio(ctx context.Context, video, background Clip, videoWeight, backgroundWeight float64) (Clip, error) {
	if !video.HasAudio {
		// Nothing to mix against: the scaled background becomes the
		// only track.
		return f.ReplaceAudio(ctx, video, background)
	}
	filter := fmt.Sprintf(
		"[0:a:0]volume=%s[a0];[1:a:0]volume=%s[a1];[a0][a1]amix=inputs=2:duration=first:normalize=0[a]",
		formatFloat(videoWeight), formatFloat(backgroundWeight),
	)
	out := f.scratchPath(".mp4")
	args := []string{
		"-y",
		"-i", video.Path,
		"-i", background.Path,
		"-filter_complex", filter,
		"-map", "0:v:0", "-map", "[a]",
		"-c:v", "copy",
		"-c:a", "aac",
		out,
	}
	if _, err := f.run(ctx, f.cfg.FFBin, args); err != nil {
		return Clip{}, err
	}
	return Clip{Path: out, Duration: video.Duration, HasAudio: true}, nil
}

// drawtextEscaper neutralizes the characters drawtext treats specially.
var drawtextEscaper = strings.NewReplacer(
	`\`, `\\`,
	`:`, `\:`,
	`'`, `\\'`,
	`%`, `\%`,
)

func (f *FFmpeg) OverlaySubtitles(ctx context.Context, video Clip, subs []Subtitle) (Clip, error) {
	if len(subs) == 0 {
		return video, nil
	}

	filters := make([]string, 0, len(subs))
	for _, s := range subs {
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':fontcolor=white:fontsize=50:borderw=2:bordercolor=black:x=(w-text_w)/2:y=h-text_h-40:enable='between(t,%s,%s)'",
			drawtextEscaper.Replace(s.Text),
			formatFloat(s.Start), formatFloat(s.End),
		))
	}

	out := f.scratchPath(".mp4")
	args := []string{
		"-y",
		"-i", video.Path,
		"-vf", strings.Join(filters, ","),
		"-c:v", "libx264", "-preset", "veryfast",
		"-c:a", "copy",
		out,
	}
	if _, err := f.run(ctx, f.cfg.FFBin, args); err != nil {
		return Clip{}, err
	}
	return Clip{Path: out, Duration: video.Duration, HasAudio: video.HasAudio}, nil
}

func (f *FFmpeg) Encode(ctx context.Context, clip Clip, preset Preset, outputPath string) error {
	args := []string{"-y", "-i", clip.Path}
	if preset.Width > 0 && preset.Height > 0 {
		args = append(args, "-vf", fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:-1:-1",
			preset.Width, preset.Height, preset.Width, preset.Height,
		))
	}
	args = append(args, "-c:v", "libx264")
	if preset.VideoBitrate != "" {
		args = append(args, "-b:v", preset.VideoBitrate)
	}
	args = append(args, "-c:a", "aac")
	if preset.AudioBitrate != "" {
		args = append(args, "-b:a", preset.AudioBitrate)
	}
	args = append(args, f.extraArgs...)
	args = append(args, "-movflags", "+faststart", outputPath)

	_, err := f.run(ctx, f.cfg.FFBin, args)
	return err
}

// CheckResources verifies that the system has enough free resources to
// start a new job.
func (f *FFmpeg) CheckResources() error {
	p, err := cpu.Percent(time.Second, false)
	if err != nil {
		log.Printf("Warning: could not get CPU usage: %v", err)
	} else if len(p) > 0 && p[0] > (100.0-f.cfg.ThrottleCPU) {
		return fmt.Errorf("not enough idle CPU. Current usage: %.2f%%, Idle threshold: %.2f%%", p[0], f.cfg.ThrottleCPU)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("Warning: could not get memory usage: %v", err)
	} else if vm.Available < uint64(f.cfg.ThrottleFreeMem) {
		return fmt.Errorf("not enough free memory. Available: %d, Required: %d", vm.Available, f.cfg.ThrottleFreeMem)
	}

	d, err := disk.Usage(f.scratchDir)
	if err != nil {
		log.Printf("Warning: could not get disk usage for %s: %v", f.scratchDir, err)
	} else if d.Free < uint64(f.cfg.ThrottleFreeDisk) {
		return fmt.Errorf("not enough free disk space. Available: %d, Required: %d", d.Free, f.cfg.ThrottleFreeDisk)
	}
	return nil
}

// formatFloat renders a float for ffmpeg arguments without
// exponent notation.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
