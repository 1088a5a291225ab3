package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/config"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/csvparse"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/db"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/export"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/licence"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/logging"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/metrics"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/notify"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/register"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/repository"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/storage"
)

// app holds the process wide dependencies shared by the commands.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	conn    *db.Connection
	metrics *metrics.Metrics

	s3      *s3.Client
	closers []func() error
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, closeLog := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	conn, err := db.NewConnection(ctx, cfg.Database.DB(), logger)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &app{
		cfg:     cfg,
		logger:  logger,
		conn:    conn,
		metrics: metrics.New(prometheus.DefaultRegisterer),
		closers: []func() error{closeLog},
	}, nil
}

func (a *app) close() {
	a.conn.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to release resource", "error", err)
		}
	}
}

func (a *app) s3Client(ctx context.Context) (*s3.Client, error) {
	if a.s3 != nil {
		return a.s3, nil
	}
	client, err := storage.NewS3Client(ctx, storage.Config{
		Region:       a.cfg.AWS.Region,
		Endpoint:     a.cfg.AWS.Endpoint,
		UsePathStyle: a.cfg.AWS.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	a.s3 = client
	return client, nil
}

func (a *app) registerService(ctx context.Context) (*register.Service[domain.Licence], error) {
	parser := licence.NewParser(
		csvparse.WithMaxLineLength(a.cfg.Register.MaxLineLength),
		csvparse.WithLogger(a.logger),
	)
	svc := register.NewService(
		repository.NewRegisterJobRepository(a.conn.Pool),
		register.LicenceParser(parser),
		register.NewLicenceSink(repository.NewLicenceRepository(a.conn)),
		register.WithLogger(a.logger),
		register.WithMetrics(a.metrics),
		register.WithMaxErrors(a.cfg.Register.MaxErrors),
		register.WithJobTimeout(a.cfg.Register.JobTimeout),
	)

	if a.cfg.Redis.Enabled() {
		client, err := notify.NewRedisClient(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		svc.Subscribe(notify.Listener[domain.Licence](notify.NewRedisPublisher(client, a.cfg.Redis.Channel)))
		a.logger.Info("publishing register job completions to redis", "channel", a.cfg.Redis.Channel)
	}
	if a.cfg.Kafka.Enabled() {
		client, err := notify.NewKafkaClient(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { client.Close(); return nil })
		svc.Subscribe(notify.Listener[domain.Licence](notify.NewKafkaPublisher(client, a.cfg.Kafka.Topic)))
		a.logger.Info("publishing register job completions to kafka", "topic", a.cfg.Kafka.Topic)
	}
	return svc, nil
}

func (a *app) exportService(ctx context.Context) (*export.Service, error) {
	exporter := export.NewPostgresExporter(
		export.PoolCopier{Pool: a.conn.Pool},
		repository.LicenceExportQuery,
		export.WithFlushBytes(a.cfg.Export.FlushBytes),
	)
	opts := []export.Option{
		export.WithLogger(a.logger),
		export.WithMetrics(a.metrics),
		export.WithPresignExpiry(a.cfg.Export.PresignExpiry),
	}

	var destinations export.DestinationFactory
	switch a.cfg.Export.Destination {
	case "s3":
		client, err := a.s3Client(ctx)
		if err != nil {
			return nil, err
		}
		destinations = export.S3Destinations(client, a.cfg.Export.Bucket, "")
		opts = append(opts, export.WithPresigner(s3.NewPresignClient(client)))
	default:
		destinations = export.FileDestinations(a.cfg.Export.Directory)
	}
	return export.NewService(exporter, destinations, opts...), nil
}
