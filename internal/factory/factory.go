package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/backend"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/bucketing"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/client"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/config"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/handler"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/hashing"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/monitor"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/ratelimit"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/session"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/tls"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	redisClient      *client.RedisClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient
	kmsClient        *kms.Client

	// Managers
	hasher           *hashing.Hasher
	bucketingManager *bucketing.BucketingManager
	codec            *session.Codec

	// Domain
	directory      *backend.AdminDirectory
	tokenRegistry  *backend.TokenRegistry
	backendService *backend.Service
	securityMon    *monitor.Monitor
	contentGuard   *monitor.ContentGuard
	loginLimiter   ratelimit.Limiter
	formLimiter    ratelimit.Limiter
	sessionStore   *session.Store
	antiForgery    *session.AntiForgery

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		tlsConfig := &tls.TLSConfig{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.Email,
			Environment: cfg.Environment,
		}
		factory.tlsManager = tls.NewTLSManager(tlsConfig)
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := factory.initializeManagers(); err != nil {
		return nil, fmt.Errorf("failed to initialize managers: %w", err)
	}

	factory.initializeDomain()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)

	return factory, nil
}

// initializeClients initializes all external service clients with health checks
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// Redis
	if redisClient, err := client.NewRedisClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = redisClient
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
		} else {
			util.Info("Redis client initialized and healthy")
		}
	}

	// Kafka
	if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
		util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
	} else {
		f.kafkaProducer = producer
		util.Info("Kafka producer initialized")
	}

	// Elasticsearch
	if esClient, err := client.NewElasticsearchClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
	} else {
		f.esClient = esClient
		if err := f.esClient.HealthCheck(); err != nil {
			initErrors = append(initErrors, fmt.Errorf("elasticsearch health check: %w", err))
		} else {
			util.Info("Elasticsearch client initialized and healthy")
		}
	}

	// ClickHouse
	if chClient, err := client.NewClickHouseClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
	} else {
		f.clickhouseClient = chClient
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse health check: %w", err))
		} else {
			util.Info("ClickHouse client initialized and healthy")
		}
	}

	// KMS
	if f.config.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			initErrors = append(initErrors, fmt.Errorf("kms: %w", err))
		} else {
			f.kmsClient = kms.NewFromConfig(awsCfg)
			util.Info("KMS client initialized", util.String("region", f.config.KMS.Region))
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

// initializeManagers initializes hashing, bucketing, and the session codec
func (f *Factory) initializeManagers() error {
	f.hasher = hashing.NewHasher(f.config)
	f.bucketingManager = bucketing.NewBucketingManager(f.config)

	codec, err := session.NewCodec(f.config, f.kmsClient)
	if err != nil {
		return fmt.Errorf("session codec: %w", err)
	}
	f.codec = codec

	if f.config.IsProduction() {
		f.hasher.StartPepperRotation(24 * time.Hour)
	}

	util.Info("Managers initialized successfully",
		util.Bool("hashing_initialized", f.hasher != nil),
		util.Bool("codec_initialized", f.codec != nil),
		util.Bool("bucketing_initialized", f.bucketingManager != nil),
	)
	return nil
}

// initializeDomain wires the session store, security monitor, rate
// limiters and anti-forgery on top of the clients.
func (f *Factory) initializeDomain() {
	cfg := f.config

	if directory, err := backend.NewAdminDirectory(cfg, f.hasher, util.Get()); err != nil {
		if cfg.IsProduction() {
			util.Fatal("Admin directory initialization failed", util.ErrorField(err))
		}
		util.Warn("Admin directory unavailable - logins will fail", util.ErrorField(err))
	} else {
		f.directory = directory
	}

	f.tokenRegistry = backend.NewTokenRegistry(f.redisClient, cfg.Security.SessionTTL)
	f.backendService = backend.NewService(
		f.directory,
		f.tokenRegistry,
		f.kafkaProducer,
		f.clickhouseClient,
		f.esClient,
		f.bucketingManager,
	)

	f.securityMon = monitor.NewMonitor(f.backendService, cfg.Security.CounterResetWindow)
	f.contentGuard = monitor.NewContentGuard(f.securityMon)

	f.loginLimiter = ratelimit.NewRedisSlidingWindow(f.redisClient, cfg.Security.LoginMaxAttempts, cfg.Security.LoginWindow)
	f.formLimiter = ratelimit.NewRedisSlidingWindow(f.redisClient, cfg.Security.FormMaxAttempts, cfg.Security.FormWindow)

	vault := session.NewRedisVault(f.redisClient, cfg.Security.SessionTTL)
	f.sessionStore = session.NewStore(
		vault,
		f.codec,
		f.backendService,
		f.loginLimiter,
		cfg.Security.SessionTTL,
		session.WithReporter(f.securityMon),
	)
	f.antiForgery = session.NewAntiForgery(vault, cfg.Security.AntiForgeryTTL)
}

// AuthHandler builds the admin session handler.
func (f *Factory) AuthHandler() *handler.AuthHandler {
	return handler.NewAuthHandler(f.sessionStore, f.securityMon, util.Get())
}

// FormsHandler builds the public lead form handler.
func (f *Factory) FormsHandler() *handler.FormsHandler {
	return handler.NewFormsHandler(f.contentGuard, f.securityMon, f.antiForgery, f.formLimiter, util.Get())
}

// ==============================
// Health Checks
// ==============================

func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	} else {
		healthErrors["redis"] = fmt.Errorf("redis client not initialized")
	}

	if f.directory != nil {
		if err := f.directory.HealthCheck(ctx); err != nil {
			healthErrors["directory"] = err
		}
	} else {
		healthErrors["directory"] = fmt.Errorf("admin directory not initialized")
	}

	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}

	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
			util.Info("Elasticsearch client closed")
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.directory != nil {
			f.directory.Close()
			util.Info("Admin directory closed")
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		if f.codec != nil {
			f.codec.ClearCache()
			util.Info("Session codec cache cleared")
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) SessionStore() *session.Store {
	return f.sessionStore
}

func (f *Factory) Monitor() *monitor.Monitor {
	return f.securityMon
}

func (f *Factory) Backend() *backend.Service {
	return f.backendService
}

func (f *Factory) Hasher() *hashing.Hasher {
	return f.hasher
}

func (f *Factory) BucketingManager() *bucketing.BucketingManager {
	return f.bucketingManager
}
