package bootstrap

import (
	"go.uber.org/zap"

	"pagemsg/internal/audio"
	"pagemsg/internal/config"
	"pagemsg/internal/domain"
	"pagemsg/internal/logging"
	"pagemsg/internal/ports"
	"pagemsg/internal/slots"
	"pagemsg/internal/store"
	"pagemsg/internal/transcode"
	"pagemsg/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Manager    *usecase.Manager
	Config     config.Config
	Logger     *zap.SugaredLogger
	Driver     ports.Driver
	Transcoder ports.Transcoder
	// Close flushes the logger.
	Close func()
}

// Build loads configuration and wires all backend dependencies.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, flush, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return Services{}, err
	}

	services, err := Assemble(cfg, eventSink, logger)
	if err != nil {
		flush()
		return Services{}, err
	}
	services.Close = flush
	return services, nil
}

// Assemble wires services from an already loaded configuration.
func Assemble(cfg config.Config, eventSink ports.EventSink, logger *zap.SugaredLogger) (Services, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	selectCfg := audio.SelectConfig{
		Preferred:     cfg.Audio.Driver,
		InputDevice:   cfg.Audio.InputDevice,
		OutputDevice:  cfg.Audio.OutputDevice,
		RecordCommand: cfg.Audio.RecordCommand,
		PlayCommand:   cfg.Audio.PlayCommand,
	}
	driver, err := audio.SelectDriver(selectCfg, audio.Candidates(selectCfg, logger), logger)
	if err != nil {
		return Services{}, err
	}

	st, err := store.Open(cfg.Storage.MetadataFile, logger)
	if err != nil {
		return Services{}, err
	}

	transcoder, err := transcode.New(cfg.Transcode.Engine, cfg.Transcode.Command, cfg.Transcode.Timeout, logger)
	if err != nil {
		return Services{}, err
	}

	manager := usecase.NewManager(st, driver, transcoder, eventSink, logger, usecase.ManagerConfig{
		StorageDir:         cfg.Storage.Dir,
		TempDir:            cfg.Storage.TempDir,
		Policy:             slots.NewPolicy(cfg.Slots.NumButtons, cfg.Slots.LegacyTypes, cfg.Slots.LegacyPoolSize),
		DefaultMessageType: cfg.Slots.DefaultMessageType,
		Format:             domain.AudioFormat(cfg.Audio.Format),
		Capture: ports.CaptureParams{
			Channels:   cfg.Audio.Channels,
			SampleRate: cfg.Audio.SampleRate,
			PeriodSize: cfg.Audio.PeriodSize,
			Device:     cfg.Audio.InputDevice,
		},
		OutputDevice: cfg.Audio.OutputDevice,
		StopTimeout:  cfg.Session.StopTimeout,
	})

	return Services{
		Manager:    manager,
		Config:     cfg,
		Logger:     logger,
		Driver:     driver,
		Transcoder: transcoder,
		Close:      func() { _ = logger.Sync() },
	}, nil
}
