package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"road-inspector/config"
	app "road-inspector/internal/application"
	"road-inspector/internal/domain/port"
	"road-inspector/internal/infrastructure/annotate"
	"road-inspector/internal/infrastructure/blob"
	"road-inspector/internal/infrastructure/inference"
	"road-inspector/internal/infrastructure/notify"
	"road-inspector/internal/infrastructure/report"
	"road-inspector/internal/infrastructure/storage"
	"road-inspector/internal/infrastructure/storage/postgres"
	"road-inspector/internal/infrastructure/storage/sqlite"
	"road-inspector/internal/infrastructure/vision"
)

// Ports инфраструктура, из которой собираются сервисы
type Ports struct {
	Store     port.StorageGateway
	Blobs     port.BlobStore
	Pool      port.EnginePool
	Codec     port.VideoCodec
	Annotator port.FrameAnnotator
	Renderer  port.ReportRenderer
	Operators port.OperatorRepository
}

// Options параметры сервисов из конфигурации
type Options struct {
	Severity  map[string]int
	LabelMode app.LabelMode
	WorkDir   string
}

type Container struct {
	SurveyService   *app.SurveyService
	ArtifactService *app.ArtifactService
	OperatorService *app.OperatorService
	// Notifier получатели событий об отчётах; бот добавляется после запуска
	Notifier *notify.Fanout
	Store    port.StorageGateway

	delivery *notify.Async
	closers  []func() error
	logger   *zap.Logger
}

// New собирает сервисы приложения из готовых портов
func New(p Ports, opts Options, logger *zap.Logger) (*Container, error) {
	table, err := app.NewSeverityTable(opts.Severity)
	if err != nil {
		return nil, err
	}

	notifier := notify.NewFanout(logger)
	delivery := notify.NewAsync(notifier, notify.DefaultQueueSize, notify.DefaultDeliveryTimeout, logger)
	reports := app.NewReportGenerator(p.Renderer, p.Blobs, logger)
	surveyService := app.NewSurveyService(app.SurveyDeps{
		Pool:      p.Pool,
		Annotator: p.Annotator,
		Processor: app.NewVideoProcessor(p.Codec, logger),
		Rating:    app.NewRatingCalculator(table),
		Reports:   reports,
		Store:     p.Store,
		Blobs:     p.Blobs,
		Notifier:  delivery,
		WorkDir:   opts.WorkDir,
		LabelMode: opts.LabelMode,
		Logger:    logger,
	})

	return &Container{
		SurveyService:   surveyService,
		ArtifactService: app.NewArtifactService(p.Store, p.Blobs, logger),
		OperatorService: app.NewOperatorService(p.Operators),
		Notifier:        notifier,
		Store:           p.Store,
		delivery:        delivery,
		logger:          logger,
	}, nil
}

// Build создаёт инфраструктуру по конфигурации и собирает сервисы.
// При ошибке уже созданные ресурсы закрываются.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (c *Container, err error) {
	var closers []func() error
	defer func() {
		if err != nil {
			closeAll(closers, logger)
		}
	}()

	severity, err := cfg.LoadSeverityTable()
	if err != nil {
		return nil, err
	}
	labelMode, err := app.ParseLabelMode(cfg.LabelMode)
	if err != nil {
		return nil, err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	closers = append(closers, store.Close)
	logger.Info("storage ready", zap.String("driver", cfg.StorageDriver))

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	logger.Info("blob store ready", zap.String("driver", cfg.BlobDriver))

	pool, err := inference.NewPool(cfg.EnginePoolSize, engineFactory(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	closers = append(closers, pool.Close)

	codec, err := vision.NewVideoCodec()
	if errors.Is(err, vision.ErrNoGoCV) {
		logger.Warn("video decoding is unavailable, build with -tags gocv to process videos")
		codec = &vision.VideoCodec{}
	} else if err != nil {
		return nil, fmt.Errorf("video codec: %w", err)
	}

	c, err = New(Ports{
		Store:     store,
		Blobs:     blobs,
		Pool:      pool,
		Codec:     codec,
		Annotator: newAnnotator(logger),
		Renderer:  report.NewPDFRenderer(),
		Operators: storage.NewMemoryOperatorRepository(),
	}, Options{
		Severity:  severity,
		LabelMode: labelMode,
		WorkDir:   cfg.WorkDir,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.RabbitMQURL != "" {
		publisher, err := notify.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			c.delivery.Close()
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		closers = append(closers, publisher.Close)
		c.Notifier.Add(publisher)
		logger.Info("report events enabled", zap.String("exchange", cfg.RabbitMQExchange))
	}

	c.closers = closers
	return c, nil
}

// Health проверяет доступность хранилища, если драйвер это умеет
func (c *Container) Health(ctx context.Context) error {
	pinger, ok := c.Store.(interface{ Ping(ctx context.Context) error })
	if !ok {
		return nil
	}
	return pinger.Ping(ctx)
}

// Close дожидается доставки поставленных уведомлений, затем освобождает
// ресурсы в обратном порядке создания
func (c *Container) Close() {
	if err := c.delivery.Close(); err != nil {
		c.logger.Warn("failed to drain notifications", zap.Error(err))
	}
	closeAll(c.closers, c.logger)
	c.closers = nil
}

func closeAll(closers []func() error, logger *zap.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("failed to close resource", zap.Error(err))
		}
	}
}

func newStore(ctx context.Context, cfg *config.Config) (port.StorageGateway, error) {
	switch cfg.StorageDriver {
	case "memory":
		return storage.NewMemoryGateway(), nil
	case "sqlite":
		return sqlite.Open(cfg.SQLitePath)
	case "postgres":
		return postgres.Connect(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config) (port.BlobStore, error) {
	switch cfg.BlobDriver {
	case "fs":
		return blob.NewFSStore(cfg.BlobDir)
	case "minio":
		store, err := blob.NewMinIOStore(blob.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.MinIOBucket,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}

// newAnnotator рисует через OpenCV, если сборка с тегом gocv, иначе шрифтом basicfont.
func newAnnotator(logger *zap.Logger) port.FrameAnnotator {
	a, err := vision.NewAnnotator()
	if err != nil {
		logger.Debug("opencv annotator unavailable, using built-in renderer", zap.Error(err))
		return annotate.NewDefault()
	}
	return a
}

func engineFactory(cfg *config.Config) inference.Factory {
	switch cfg.InferenceBackend {
	case "dnn":
		dnn := vision.DNNConfig{
			ModelPath:           cfg.ModelPath,
			Classes:             cfg.ModelClasses,
			InputSize:           cfg.ModelInputSize,
			ConfidenceThreshold: float32(cfg.ConfidenceThreshold),
		}
		return func() (port.InferenceEngine, error) {
			engine, err := vision.NewDNNEngine(dnn)
			if err != nil {
				return nil, err
			}
			return engine, nil
		}
	default:
		timeout := time.Duration(cfg.InferenceTimeoutSec) * time.Second
		return func() (port.InferenceEngine, error) {
			return inference.NewHTTPEngine(cfg.InferenceURL, cfg.ConfidenceThreshold, timeout), nil
		}
	}
}
