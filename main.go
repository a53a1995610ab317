// AnchorCast is a headless broadcast engine: it turns a news script
// into a lip-synced performance on a remote 3D anchor stage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/normanking/anchorcast/internal/bridge"
	"github.com/normanking/anchorcast/internal/bus"
	"github.com/normanking/anchorcast/internal/catalog"
	"github.com/normanking/anchorcast/internal/config"
	"github.com/normanking/anchorcast/internal/logging"
	"github.com/normanking/anchorcast/internal/recorder"
	"github.com/normanking/anchorcast/internal/renderer"
	"github.com/normanking/anchorcast/internal/script"
	"github.com/normanking/anchorcast/internal/session"
	"github.com/normanking/anchorcast/internal/speech"
	"github.com/normanking/anchorcast/internal/tts"
)

func main() {
	var (
		scriptPath = flag.String("script", "", "path to a broadcast script (JSON)")
		text       = flag.String("text", "", "speak a single line instead of a script")
		avatarID   = flag.String("avatar", "", "catalog avatar id (default from catalog)")
		bgID       = flag.String("background", "", "catalog background id (default from catalog)")
		clipPath   = flag.String("clip", "", "prerecorded WAV to play before the broadcast")
		watch      = flag.Bool("watch", false, "watch the script file and replay on change")
		record     = flag.Bool("record", false, "record the broadcast to a .webm file")
		preview    = flag.Bool("preview", false, "print the parsed script and exit")
	)
	flag.Parse()

	if err := run(*scriptPath, *text, *avatarID, *bgID, *clipPath, *watch, *record, *preview); err != nil {
		fmt.Fprintln(os.Stderr, "anchorcast:", err)
		os.Exit(1)
	}
}

func run(scriptPath, text, avatarID, bgID, clipPath string, watch, record, preview bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Console = cfg.Logging.Console
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	defaults := script.Defaults{
		Mood:  cfg.Broadcast.DefaultMood,
		View:  cfg.Broadcast.DefaultView,
		Voice: cfg.TTS.DefaultVoice,
		Speed: cfg.TTS.DefaultSpeed,
		Delay: int(cfg.Broadcast.SegmentDelay / time.Millisecond),
	}

	scr, err := loadScript(scriptPath, text, defaults)
	if err != nil {
		return err
	}
	if preview {
		fmt.Print(scr.Preview())
		return nil
	}
	if watch && scriptPath == "" {
		return errors.New("-watch requires -script")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := bus.NewEventBus()
	cat := catalog.Builtin()

	stage := renderer.NewRemoteStage(cfg.Stage.URL, logger)
	stage.EnableReconnect(cfg.Stage.ReconnectDelay, cfg.Stage.MaxReconnects)
	if err := stage.Connect(ctx); err != nil {
		return err
	}
	defer stage.Close()

	neural := tts.NewNeuralEngine(logger, &tts.NeuralConfig{
		Endpoint:   cfg.TTS.Endpoint,
		APIKey:     cfg.TTS.APIKey,
		Voice:      cfg.TTS.DefaultVoice,
		SampleRate: cfg.TTS.SampleRate,
		Timeout:    cfg.TTS.Timeout,
		LipSync:    cfg.TTS.EnableLipSync,
	})
	defer neural.Close()
	local := tts.NewLocalEngine(logger)

	speaker := speech.NewSpeaker(neural, local, stage, events, speech.Options{
		PollInterval: cfg.Broadcast.PollInterval,
		Margin:       cfg.Broadcast.SpeechMargin,
	}, logger)

	sess := session.New(stage, speaker, cat, events, defaults, logger)
	if err := sess.Overlays.SetAccentColor(cfg.Broadcast.AccentColor); err != nil {
		logger.Warn().Err(err).Msg("Ignoring configured accent color")
	}
	sess.Overlays.SetSubtitles(cfg.Broadcast.SubtitlesShown)
	if cfg.Broadcast.LowerThirdTitle != "" {
		sess.Overlays.SetLowerThird(cfg.Broadcast.LowerThirdTitle, cfg.Broadcast.LowerThirdSubtitle)
	}
	if len(cfg.Broadcast.Ticker) > 0 {
		sess.Overlays.SetTicker(cfg.Broadcast.Ticker)
	}
	// Configured graphics stay off air until the broadcast starts.
	sess.Overlays.HideAll()
	if cfg.Stage.CameraZoom > 0 {
		if err := sess.SetZoom(cfg.Stage.CameraZoom); err != nil {
			return err
		}
	}
	if err := setScene(ctx, sess, cat, avatarID, bgID); err != nil {
		return err
	}

	if cfg.Broadcast.BridgeEnabled {
		br := bridge.New(cfg.Broadcast.BridgeURL, events, &sessionController{sess, defaults}, logger)
		if err := br.Connect(ctx); err != nil {
			logger.Warn().Err(err).Msg("Host bridge unavailable, continuing without it")
		} else {
			defer br.Close()
		}
	}

	if record || cfg.Recorder.Enabled {
		outDir := cfg.Recorder.OutputDir
		if outDir == "" {
			outDir = "."
		}
		rec := recorder.New(stage, outDir, cfg.Recorder.FPS, events, logger)
		if err := stage.StartCapture(cfg.Recorder.FPS); err != nil {
			return fmt.Errorf("start capture: %w", err)
		}
		if err := rec.Start(); err != nil {
			return err
		}
		defer func() {
			stage.StopCapture()
			if path, err := rec.Stop(); err != nil {
				logger.Error().Err(err).Msg("Recording failed")
			} else if path != "" {
				fmt.Println("recording saved:", path)
			}
		}()
	}

	if clipPath != "" {
		clips := speech.NewClipPlayer(stage, logger)
		if err := clips.Play(ctx, clipPath); err != nil {
			logger.Warn().Err(err).Msg("Intro clip failed")
		}
	}

	if watch {
		return watchAndBroadcast(ctx, sess, scriptPath, defaults, logger)
	}
	return broadcastOnce(ctx, sess, scr)
}

func loadScript(path, text string, defaults script.Defaults) (*script.Script, error) {
	switch {
	case path != "" && text != "":
		return nil, errors.New("use either -script or -text, not both")
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read script: %w", err)
		}
		return script.Parse(data, defaults)
	case text != "":
		return script.FromText(text, defaults)
	default:
		return nil, errors.New("nothing to broadcast: pass -script or -text")
	}
}

func setScene(ctx context.Context, sess *session.Session, cat *catalog.Catalog, avatarID, bgID string) error {
	if avatarID == "" {
		avatarID = cat.DefaultAvatar().ID
	}
	if err := sess.LoadAvatar(ctx, avatarID); err != nil {
		return fmt.Errorf("load avatar: %w", err)
	}

	if bgID == "" {
		bgID = cat.DefaultBackground().ID
	}
	if err := sess.LoadBackground(bgID); err != nil {
		return fmt.Errorf("load background: %w", err)
	}
	return nil
}

// broadcastOnce plays a script and waits for it to finish
func broadcastOnce(ctx context.Context, sess *session.Session, scr *script.Script) error {
	if err := sess.Start(scr); err != nil {
		return err
	}
	return waitIdle(ctx, sess)
}

func waitIdle(ctx context.Context, sess *session.Session) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			sess.Stop()
			return nil
		case <-ticker.C:
			if sess.Phase() == session.PhaseIdle {
				return nil
			}
		}
	}
}

// watchAndBroadcast replays the script whenever the file changes,
// until interrupted.
func watchAndBroadcast(ctx context.Context, sess *session.Session, path string, defaults script.Defaults, logger zerolog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	play := func() {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error().Err(err).Msg("Script unreadable")
			return
		}
		scr, err := script.Parse(data, defaults)
		if err != nil {
			logger.Error().Err(err).Msg("Script rejected")
			return
		}
		sess.Stop()
		if err := waitIdle(ctx, sess); err != nil {
			return
		}
		if err := sess.Start(scr); err != nil {
			logger.Error().Err(err).Msg("Broadcast failed to start")
		}
	}

	play()
	logger.Info().Str("script", path).Msg("Watching for script changes")

	for {
		select {
		case <-ctx.Done():
			sess.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				logger.Info().Str("script", path).Msg("Script changed, replaying")
				play()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

// sessionController exposes the session to host bridge commands
type sessionController struct {
	sess     *session.Session
	defaults script.Defaults
}

func (c *sessionController) StartScript(data []byte) error {
	scr, err := script.Parse(data, c.defaults)
	if err != nil {
		return err
	}
	return c.sess.Start(scr)
}

func (c *sessionController) Pause() error  { return c.sess.Pause() }
func (c *sessionController) Resume() error { return c.sess.Resume() }
func (c *sessionController) Stop()         { c.sess.Stop() }
