package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"clipforge/internal/clips"
	"clipforge/internal/config"
	"clipforge/internal/daemon"
	"clipforge/internal/detect"
	"clipforge/internal/framing"
	"clipforge/internal/generate"
	"clipforge/internal/llm"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/preflight"
	"clipforge/internal/queue"
	"clipforge/internal/reaper"
	"clipforge/internal/scenes"
	"clipforge/internal/selection"
	"clipforge/internal/storage"
	"clipforge/internal/transcribe"
	"clipforge/internal/workflow"
)

func runDaemon(cmdCtx context.Context, configPath string) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logPath := filepath.Join(cfg.Paths.LogDir, "clipforged.log")
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	results := preflight.RunAll(cfg)
	for _, result := range results {
		if result.Passed {
			logger.Debug("preflight check passed", logging.String("check", result.Name), logging.String("detail", result.Detail))
		} else {
			logger.Error("preflight check failed", logging.String("check", result.Name), logging.String("detail", result.Detail))
		}
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		return fmt.Errorf("preflight failed: %d check(s) did not pass", len(failed))
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	gateway, err := storage.NewGateway(cfg, logger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	manager := workflow.NewManager(cfg, store, logger)
	registerPipelines(manager, cfg, store, gateway, logger)

	d, err := daemon.New(cfg, store, logger, manager, reaper.New(cfg, store, logger))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("clipforge daemon shutting down")
	return nil
}

func registerPipelines(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, gateway storage.Gateway, logger *slog.Logger) {
	executor := media.NewExecutor(cfg.Media.FFmpegBinary, cfg.Media.FFprobeBinary)
	transcriber := transcribe.NewWhisperProvider(cfg.Transcription.Binary, cfg.Transcription.Model)

	selectionClient := llm.NewClient(llm.Config{
		APIKey:         cfg.Selection.APIKey,
		BaseURL:        cfg.Selection.BaseURL,
		Temperature:    cfg.Selection.Temperature,
		MaxTokens:      cfg.Selection.MaxTokens,
		TimeoutSeconds: cfg.Selection.TimeoutSeconds,
	})
	providers := make([]selection.Provider, 0, len(cfg.Selection.Models))
	for _, model := range cfg.Selection.Models {
		providers = append(providers, selection.NewLLMProvider(selectionClient, model))
	}
	chain := selection.NewChain(providers, selection.Bounds{
		MinDuration: cfg.Selection.MinDuration,
		MaxDuration: cfg.Selection.MaxDuration,
	}, logger)

	var detector detect.Detector
	if cfg.Framing.DetectorBinary != "" {
		detector = detect.NewCLIDetector(cfg.Framing.DetectorBinary, cfg.Framing.DetectorModel, cfg.Framing.MinConfidence)
	}
	planner := framing.NewPlanner(detector, executor, framing.Options{
		SampleFrames:  cfg.Framing.SampleFrames,
		SubjectWeight: cfg.Framing.SubjectWeight,
	}, logger)

	mgr.Register(queue.KindClip, clips.NewPipeline(cfg, store, clips.Deps{
		Media:       executor,
		Transcriber: transcriber,
		Selector:    chain,
		Planner:     planner,
		Gateway:     gateway,
	}, logger))

	generationClient := llm.NewClient(llm.Config{
		APIKey:         cfg.Generation.APIKey,
		BaseURL:        cfg.Generation.BaseURL,
		TimeoutSeconds: cfg.Generation.TimeoutSeconds,
	})
	writer := generate.NewWriter(generationClient, generate.WriterConfig{
		Model:      cfg.Generation.StoryModel,
		MaxScenes:  cfg.Generation.MaxScenes,
		CharsMin:   cfg.Generation.StoryCharsMin,
		CharsMax:   cfg.Generation.StoryCharsMax,
		AspectRule: cfg.Generation.SceneAspectRule,
	})
	providerTimeout := time.Duration(cfg.Generation.TimeoutSeconds) * time.Second

	mgr.Register(queue.KindScene, scenes.NewPipeline(cfg, store, scenes.Deps{
		Writer:      writer,
		Images:      generate.NewHTTPImageProvider(cfg.Generation.ImageEndpoint, cfg.Generation.APIKey, cfg.Generation.ImageModel, cfg.Generation.SceneAspectRule, providerTimeout),
		Speech:      generate.NewHTTPSpeechProvider(cfg.Generation.TTSEndpoint, cfg.Generation.APIKey, cfg.Generation.TTSModel, cfg.Generation.SpeechRate, providerTimeout),
		Media:       executor,
		Transcriber: transcriber,
		Gateway:     gateway,
	}, logger))
}
