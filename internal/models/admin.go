package models

import "time"

// AdminUser is a back-office account in the admin directory.
type AdminUser struct {
	AdminID       string     `db:"admin_id"`
	Email         string     `db:"email"`
	DisplayName   string     `db:"display_name"`
	SecretHash    string     `db:"secret_hash"`
	SecretSalt    string     `db:"secret_salt"`
	PepperVersion int        `db:"pepper_version"`
	Algorithm     string     `db:"algorithm"`
	IsActive      bool       `db:"is_active"`
	CreatedAt     time.Time  `db:"created_at"`
	LastLogin     *time.Time `db:"last_login"`
}
