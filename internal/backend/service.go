package backend

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/bucketing"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/client"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/models"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/util"
)

const addressUnknown = "unknown"

// Service is the production Backend: credentials live in the Scylla
// admin directory, live tokens in the Redis registry, and the audit
// trail fans out to Kafka, ClickHouse and Elasticsearch. Audit sinks
// are best-effort; only credential and token state is load-bearing.
type Service struct {
	directory *AdminDirectory
	registry  *TokenRegistry
	producer  *client.KafkaProducer
	archive   *client.ClickHouseClient
	search    *client.ESClient
	buckets   *bucketing.BucketingManager
}

func NewService(
	directory *AdminDirectory,
	registry *TokenRegistry,
	producer *client.KafkaProducer,
	archive *client.ClickHouseClient,
	search *client.ESClient,
	buckets *bucketing.BucketingManager,
) *Service {
	return &Service{
		directory: directory,
		registry:  registry,
		producer:  producer,
		archive:   archive,
		search:    search,
		buckets:   buckets,
	}
}

func (s *Service) VerifyCredentials(ctx context.Context, email, secret string) (*Identity, error) {
	admin, err := s.directory.VerifySecret(ctx, email, secret)
	if err != nil {
		return nil, err
	}

	return &Identity{
		AdminID:     admin.AdminID,
		DisplayName: admin.DisplayName,
		Email:       admin.Email,
	}, nil
}

func (s *Service) ValidateSession(ctx context.Context, token string) (bool, error) {
	return s.registry.Validate(ctx, token)
}

func (s *Service) IssueSession(ctx context.Context, token, adminID string) error {
	return s.registry.Issue(ctx, token, adminID)
}

func (s *Service) ExtendSession(ctx context.Context, token string) (bool, error) {
	return s.registry.Extend(ctx, token)
}

func (s *Service) RevokeSession(ctx context.Context, token string) error {
	return s.registry.Revoke(ctx, token)
}

// RecordSecurityEvent streams one lifecycle event to the audit
// pipeline. Sink errors are logged and swallowed.
func (s *Service) RecordSecurityEvent(ctx context.Context, event *models.SecurityEvent) error {
	event.EventBucket = s.buckets.GetEventBucket(event.AdminID + event.Type)

	g, gctx := errgroup.WithContext(ctx)

	if s.producer != nil {
		g.Go(func() error {
			return s.producer.PublishJSON(gctx, s.producer.EventTopic(), event.Type, event)
		})
	}

	if s.archive != nil {
		g.Go(func() error {
			details, _ := json.Marshal(event.Details)
			return s.archive.Exec(gctx, `
                INSERT INTO security_events
                    (event_bucket, admin_id, type, timestamp, details)
                VALUES (?, ?, ?, ?, ?)`,
				event.EventBucket, event.AdminID, event.Type,
				event.Timestamp, string(details))
		})
	}

	if err := g.Wait(); err != nil {
		util.Warn("Security event sink failed",
			zap.String("type", event.Type),
			zap.Error(err))
	}
	return nil
}

// RecordSecurityAlert fans one alert out to every sink concurrently
func (s *Service) RecordSecurityAlert(ctx context.Context, alert *models.SecurityAlert) error {
	alert.EventBucket = s.buckets.GetEventBucket(alert.Type + alert.ClientAddress)

	g, gctx := errgroup.WithContext(ctx)

	if s.producer != nil {
		g.Go(func() error {
			return s.producer.PublishJSON(gctx, s.producer.AlertTopic(), alert.Type, alert)
		})
	}

	if s.archive != nil {
		g.Go(func() error {
			details, _ := json.Marshal(alert.Details)
			return s.archive.Exec(gctx, `
                INSERT INTO security_alerts
                    (event_bucket, id, type, severity, message, details,
                     timestamp, client_address, client_signature)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				alert.EventBucket, alert.ID, alert.Type, alert.Severity,
				alert.Message, string(details), alert.Timestamp,
				alert.ClientAddress, alert.ClientSignature)
		})
	}

	if s.search != nil {
		g.Go(func() error {
			res, err := s.search.IndexDocument(gctx, s.search.AlertIndex(), alert.ID, alert)
			if err != nil {
				return err
			}
			res.Body.Close()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		util.Warn("Security alert sink failed",
			zap.String("type", alert.Type),
			zap.String("severity", alert.Severity),
			zap.Error(err))
	}
	return nil
}

// LookupClientAddress reads the address stamped on the request context
// and degrades to "unknown" rather than failing enrichment.
func (s *Service) LookupClientAddress(ctx context.Context) (string, error) {
	if addr := ClientAddressFrom(ctx); addr != "" {
		return addr, nil
	}
	return addressUnknown, nil
}

func (s *Service) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if s.directory != nil {
		if err := s.directory.HealthCheck(ctx); err != nil {
			healthErrors["directory"] = err
		}
	}
	if s.archive != nil {
		if err := s.archive.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}
	if s.search != nil {
		if err := s.search.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}

	return healthErrors
}
