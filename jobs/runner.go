// Package jobs runs submitted media operations off the request path:
// one goroutine per job, stepping through the external media engine
// with cooperative cancel/pause checks between steps.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"clipforge/config"
	"clipforge/media"
	"clipforge/task"

	"github.com/lithammer/shortuuid/v4"
)

// Step weights per operation stage. Totals are finalized from the
// concrete inputs before a job starts and never change afterwards.
const (
	stepsPerLoad     = 1
	stepsJoin        = 5
	stepsAudioFit    = 2
	stepsAudioAttach = 2
	stepsPerSubtitle = 2
	stepsEncode      = 25
)

// Background-music mix weights for create_final_video.
const (
	mixOriginalWeight   = 0.7
	mixBackgroundWeight = 0.3
)

var errCancelled = errors.New("task cancelled")

type Runner struct {
	cfg      *config.Config
	registry *task.Registry
	engine   media.Engine
}

func NewRunner(cfg *config.Config, registry *task.Registry, engine media.Engine) *Runner {
	return &Runner{cfg: cfg, registry: registry, engine: engine}
}

// Submit validates the request, registers a task with its exact step
// budget and spawns the job goroutine. It returns as soon as the task
// exists; all failures after this point surface through the push
// channel, not the HTTP response.
func (r *Runner) Submit(req Request) (task.Task, error) {
	op, err := task.ParseOperation(req.Operation)
	if err != nil {
		return task.Task{}, err
	}
	if err := r.validate(op, &req); err != nil {
		return task.Task{}, err
	}

	id := shortuuid.New()
	t, err := r.registry.Create(id, op, budget(op, req))
	if err != nil {
		return task.Task{}, err
	}

	go r.run(id, op, req)
	log.Printf("Task %s (%s) submitted", id, op)
	return t, nil
}

// budget is the exact step total for a job's concrete inputs.
func budget(op task.Operation, req Request) int {
	n := len(req.Files)
	total := n*stepsPerLoad + stepsEncode
	if n > 1 {
		total += stepsJoin
	}
	switch op {
	case task.OpAddAudio:
		total += stepsPerLoad + stepsAudioFit + stepsAudioAttach
	case task.OpAddSubtitle:
		total += stepsPerSubtitle
	case task.OpCreateFinalVideo:
		if req.BackgroundAudio != "" {
			total += stepsPerLoad + stepsAudioFit + stepsAudioAttach
		}
		total += stepsPerSubtitle * len(req.Subtitles)
	}
	return total
}

func (r *Runner) run(id string, op task.Operation, req Request) {
	outputFile, err := r.execute(context.Background(), id, op, req)
	switch {
	case errors.Is(err, errCancelled):
		// The cancel request already set the terminal status; partial
		// scratch files are left for external housekeeping.
		log.Printf("Task %s cancelled", id)
	case err != nil:
		log.Printf("Task %s failed: %v", id, err)
		r.registry.Fail(id, err.Error())
	default:
		log.Printf("Task %s completed: %s", id, outputFile)
		r.registry.Complete(id, outputFile, fmt.Sprintf("Output ready: %s", outputFile))
	}
}

func (r *Runner) execute(ctx context.Context, id string, op task.Operation, req Request) (string, error) {
	if err := r.engine.CheckResources(); err != nil {
		return "", fmt.Errorf("insufficient system resources: %w", err)
	}

	p := &progress{runner: r, id: id}
	switch op {
	case task.OpConcatenate:
		return r.runConcatenate(ctx, p, req)
	case task.OpAddAudio:
		return r.runAddAudio(ctx, p, req)
	case task.OpAddSubtitle:
		return r.runAddSubtitle(ctx, p, req)
	case task.OpCreateFinalVideo:
		return r.runCreateFinalVideo(ctx, p, req)
	}
	return "", fmt.Errorf("unsupported operation: %s", op)
}

// progress tracks one job's step counter and enforces the checkpoint
// order: cancel check, pause wait, engine call, progress report.
type progress struct {
	runner *Runner
	id     string
	step   int
}

func (p *progress) do(weight int, message string, fn func() error) error {
	reg := p.runner.registry
	if reg.IsCancelled(p.id) {
		return errCancelled
	}
	reg.AwaitUnpaused(p.id)
	if reg.IsCancelled(p.id) {
		return errCancelled
	}
	if err := fn(); err != nil {
		return err
	}
	p.step += weight
	reg.UpdateProgress(p.id, p.step, message)
	return nil
}

func (r *Runner) loadVisual(ctx context.Context, ref FileRef) (media.Clip, error) {
	kind := media.Kind(ref.Type)
	duration := ref.Duration
	if kind == media.KindImage && duration <= 0 {
		duration = r.cfg.ImageDuration.Seconds()
	}
	return r.engine.LoadClip(ctx, r.uploadPath(ref.Filename), kind, duration)
}

// loadAndJoin covers the shared head of every pipeline: load each input
// clip, then join them when there is more than one.
func (r *Runner) loadAndJoin(ctx context.Context, p *progress, files []FileRef) (media.Clip, error) {
	clips := make([]media.Clip, 0, len(files))
	for i, ref := range files {
		ref := ref
		var clip media.Clip
		err := p.do(stepsPerLoad, fmt.Sprintf("Loading clip %d/%d", i+1, len(files)), func() error {
			var err error
			clip, err = r.loadVisual(ctx, ref)
			return err
		})
		if err != nil {
			return media.Clip{}, err
		}
		clips = append(clips, clip)
	}
	if len(clips) == 1 {
		return clips[0], nil
	}

	var joined media.Clip
	err := p.do(stepsJoin, "Joining clips", func() error {
		var err error
		joined, err = r.engine.Concat(ctx, clips)
		return err
	})
	if err != nil {
		return media.Clip{}, err
	}
	return joined, nil
}

func (r *Runner) encode(ctx context.Context, p *progress, clip media.Clip, preset media.Preset, outputFile string) error {
	return p.do(stepsEncode, "Encoding output", func() error {
		return r.engine.Encode(ctx, clip, preset, filepath.Join(r.cfg.OutputDir, outputFile))
	})
}

func (r *Runner) runConcatenate(ctx context.Context, p *progress, req Request) (string, error) {
	joined, err := r.loadAndJoin(ctx, p, req.Files)
	if err != nil {
		return "", err
	}

	outputFile := fmt.Sprintf("concatenated_%s.mp4", p.id)
	if err := r.encode(ctx, p, joined, media.Preset{}, outputFile); err != nil {
		return "", err
	}
	return outputFile, nil
}

// fitAudio loads an audio track and fits it to the exact video
// duration: truncated when longer, seamlessly looped when shorter.
func (r *Runner) fitAudio(ctx context.Context, p *progress, audioFile string, videoDuration float64) (media.Clip, error) {
	var audio media.Clip
	err := p.do(stepsPerLoad, "Loading audio track", func() error {
		var err error
		audio, err = r.engine.LoadAudio(ctx, r.uploadPath(audioFile))
		return err
	})
	if err != nil {
		return media.Clip{}, err
	}

	var fitted media.Clip
	err = p.do(stepsAudioFit, "Fitting audio to video duration", func() error {
		var err error
		fitted, err = r.engine.FitAudio(ctx, audio, videoDuration)
		return err
	})
	if err != nil {
		return media.Clip{}, err
	}
	return fitted, nil
}

func (r *Runner) runAddAudio(ctx context.Context, p *progress, req Request) (string, error) {
	video, err := r.loadAndJoin(ctx, p, req.Files)
	if err != nil {
		return "", err
	}

	fitted, err := r.fitAudio(ctx, p, req.AudioFile, video.Duration)
	if err != nil {
		return "", err
	}

	var withAudio media.Clip
	err = p.do(stepsAudioAttach, "Attaching audio track", func() error {
		var err error
		withAudio, err = r.engine.ReplaceAudio(ctx, video, fitted)
		return err
	})
	if err != nil {
		return "", err
	}

	outputFile := fmt.Sprintf("with_audio_%s.mp4", p.id)
	if err := r.encode(ctx, p, withAudio, media.Preset{}, outputFile); err != nil {
		return "", err
	}
	return outputFile, nil
}

func (r *Runner) runAddSubtitle(ctx context.Context, p *progress, req Request) (string, error) {
	video, err := r.loadAndJoin(ctx, p, req.Files)
	if err != nil {
		return "", err
	}

	sub := media.Subtitle{Text: req.SubtitleText, Start: req.StartTime, End: req.EndTime}
	var subtitled media.Clip
	err = p.do(stepsPerSubtitle, "Rendering subtitle overlay", func() error {
		var err error
		subtitled, err = r.engine.OverlaySubtitles(ctx, video, []media.Subtitle{sub})
		return err
	})
	if err != nil {
		return "", err
	}

	outputFile := fmt.Sprintf("with_subtitle_%s.mp4", p.id)
	if err := r.encode(ctx, p, subtitled, media.Preset{}, outputFile); err != nil {
		return "", err
	}
	return outputFile, nil
}

func (r *Runner) runCreateFinalVideo(ctx context.Context, p *progress, req Request) (string, error) {
	video, err := r.loadAndJoin(ctx, p, req.Files)
	if err != nil {
		return "", err
	}

	if req.BackgroundAudio != "" {
		fitted, err := r.fitAudio(ctx, p, req.BackgroundAudio, video.Duration)
		if err != nil {
			return "", err
		}
		err = p.do(stepsAudioAttach, "Mixing background audio", func() error {
			var err error
			video, err = r.engine.MixAudio(ctx, video, fitted, mixOriginalWeight, mixBackgroundWeight)
			return err
		})
		if err != nil {
			return "", err
		}
	}

	if len(req.Subtitles) > 0 {
		subs := make([]media.Subtitle, 0, len(req.Subtitles))
		for _, s := range req.Subtitles {
			subs = append(subs, media.Subtitle{Text: s.Text, Start: s.Start, End: s.End})
		}
		message := fmt.Sprintf("Rendering %d subtitle overlay(s)", len(subs))
		err = p.do(stepsPerSubtitle*len(subs), message, func() error {
			var err error
			video, err = r.engine.OverlaySubtitles(ctx, video, subs)
			return err
		})
		if err != nil {
			return "", err
		}
	}

	preset, _ := media.PresetByName(req.Quality)
	outputFile := fmt.Sprintf("%s_%s.mp4", media.SanitizeTitle(req.Title), p.id)
	if err := r.encode(ctx, p, video, preset, outputFile); err != nil {
		return "", err
	}
	return outputFile, nil
}
