package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/config"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/hashing"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/models"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/util"
)

// preparedStatements holds the queries the directory actually runs
type preparedStatements struct {
	GetAdminByEmail *gocql.Query
	CreateAdmin     *gocql.Query
	UpdateLastLogin *gocql.Query
}

// AdminDirectory stores back-office accounts in ScyllaDB and verifies
// their secrets with the Argon2id hasher.
type AdminDirectory struct {
	session  *gocql.Session
	config   *config.ScyllaConfig
	hasher   *hashing.Hasher
	prepared *preparedStatements
}

func NewAdminDirectory(cfg *config.Config, hasher *hashing.Hasher, logger *zap.Logger) (*AdminDirectory, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 2
	cluster.SocketKeepalive = 30 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	d := &AdminDirectory{
		session: session,
		config:  &scyllaConfig,
		hasher:  hasher,
	}
	d.prepareStatements()

	util.Info("Admin directory initialized",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return d, nil
}

func (d *AdminDirectory) prepareStatements() {
	prepared := &preparedStatements{}

	prepared.GetAdminByEmail = d.session.Query(`
        SELECT admin_id, email, display_name, secret_hash, secret_salt,
               pepper_version, algorithm, is_active, created_at, last_login
        FROM admin_users WHERE email = ?`)

	prepared.CreateAdmin = d.session.Query(`
        INSERT INTO admin_users (
            admin_id, email, display_name, secret_hash, secret_salt,
            pepper_version, algorithm, is_active, created_at, last_login
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.UpdateLastLogin = d.session.Query(`
        UPDATE admin_users SET last_login = ? WHERE email = ?`)

	d.prepared = prepared
}

// GetAdminByEmail loads one account; gocql.ErrNotFound maps to nil
func (d *AdminDirectory) GetAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	admin := &models.AdminUser{}

	query := d.prepared.GetAdminByEmail.WithContext(ctx).Bind(email)

	err := query.Scan(
		&admin.AdminID, &admin.Email, &admin.DisplayName, &admin.SecretHash,
		&admin.SecretSalt, &admin.PepperVersion, &admin.Algorithm,
		&admin.IsActive, &admin.CreatedAt, &admin.LastLogin)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, nil
		}
		util.Error("Failed to get admin by email",
			zap.String("email", email),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get admin by email: %w", err)
	}

	return admin, nil
}

// CreateAdmin provisions a back-office account with a hashed secret
func (d *AdminDirectory) CreateAdmin(ctx context.Context, email, displayName, secret string) (*models.AdminUser, error) {
	hashed, err := d.hasher.HashSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin secret: %w", err)
	}

	admin := &models.AdminUser{
		AdminID:       uuid.New().String(),
		Email:         email,
		DisplayName:   displayName,
		SecretHash:    hashed.Hash,
		SecretSalt:    hashed.Salt,
		PepperVersion: hashed.PepperVersion,
		Algorithm:     hashed.Algorithm,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}

	query := d.prepared.CreateAdmin.WithContext(ctx).Bind(
		admin.AdminID, admin.Email, admin.DisplayName, admin.SecretHash,
		admin.SecretSalt, admin.PepperVersion, admin.Algorithm,
		admin.IsActive, admin.CreatedAt, admin.LastLogin)

	if err := query.Exec(); err != nil {
		util.Error("Failed to create admin",
			zap.String("email", email),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	util.Info("Admin account created",
		zap.String("admin_id", admin.AdminID),
		zap.String("email", email))

	return admin, nil
}

// VerifySecret checks a candidate secret against the stored hash. An
// unknown email and a wrong secret are indistinguishable to callers.
func (d *AdminDirectory) VerifySecret(ctx context.Context, email, secret string) (*models.AdminUser, error) {
	admin, err := d.GetAdminByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if admin == nil || !admin.IsActive {
		return nil, ErrBadCredentials
	}

	ok, err := d.hasher.VerifySecret(secret, &hashing.HashResult{
		Hash:          admin.SecretHash,
		Salt:          admin.SecretSalt,
		PepperVersion: admin.PepperVersion,
		Algorithm:     admin.Algorithm,
	})
	if err != nil || !ok {
		return nil, ErrBadCredentials
	}

	now := time.Now().UTC()
	if err := d.prepared.UpdateLastLogin.WithContext(ctx).Bind(now, email).Exec(); err != nil {
		util.Warn("Failed to update last login",
			zap.String("email", email),
			zap.Error(err))
	}

	return admin, nil
}

func (d *AdminDirectory) HealthCheck(ctx context.Context) error {
	return d.session.Query(`SELECT now() FROM system.local`).WithContext(ctx).Exec()
}

func (d *AdminDirectory) Close() {
	if d.session != nil {
		d.session.Close()
		util.Info("Admin directory closed")
	}
}
