// Package bootstrap выполняет пост-деплойную инициализацию базы: секреты
// создаются деплоем с placeholder-значениями, реальные пароли ролям
// проставляет этот шаг, подключившись под административной ролью.
package bootstrap

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"go.uber.org/zap"
)

// ManagedRole — роль, чьими учетными данными владеет ротация.
type ManagedRole struct {
	Name        string
	CanCreate   bool // право создавать таблицы в схеме приложения
	Description string
}

// DefaultRoles — роли из графа провижининга: app_user и table_creator.
// Администратора не трогаем: под ним мы подключаемся.
func DefaultRoles() []ManagedRole {
	return []ManagedRole{
		{Name: "app_user", Description: "application access"},
		{Name: "table_creator", CanCreate: true, Description: "schema migrations"},
	}
}

// RotatedCredential — результат ротации для загрузки в хранилище секретов.
type RotatedCredential struct {
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	RotatedAt time.Time `json:"rotated_at"`
}

type Bootstrap struct {
	db     *sql.DB
	schema string
	logger *zap.Logger
}

// NewBootstrap подключается к базе административной ролью
func NewBootstrap(connString, schema string, logger *zap.Logger) (*Bootstrap, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Bootstrap{db: db, schema: schema, logger: logger.Named("bootstrap")}, nil
}

// Ping проверяет доступность базы перед ротацией
func (b *Bootstrap) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *Bootstrap) Close() error {
	return b.db.Close()
}

// Rotate идемпотентно приводит роли в порядок: создает отсутствующие,
// каждой проставляет свежий пароль через локально посчитанный SCRAM verifier
// и выдает права на схему приложения.
func (b *Bootstrap) Rotate(ctx context.Context, roles []ManagedRole) ([]RotatedCredential, error) {
	creds := make([]RotatedCredential, 0, len(roles))

	for _, role := range roles {
		if err := validRoleName(role.Name); err != nil {
			return nil, err
		}

		password, err := NewPassword()
		if err != nil {
			return nil, err
		}
		verifier, err := NewSCRAMVerifier(password)
		if err != nil {
			return nil, err
		}

		if err := b.ensureRole(ctx, role.Name, verifier); err != nil {
			return nil, fmt.Errorf("role %s: %w", role.Name, err)
		}

		creds = append(creds, RotatedCredential{
			Username:  role.Name,
			Password:  password,
			RotatedAt: time.Now().UTC(),
		})
		b.logger.Info("credentials rotated", zap.String("role", role.Name))
	}

	if err := b.ensureSchema(ctx, roles); err != nil {
		return nil, err
	}

	return creds, nil
}

// ensureRole создает роль при отсутствии и меняет ей пароль.
// В ALTER ROLE уходит verifier, а не пароль — plaintext не покидает процесс.
func (b *Bootstrap) ensureRole(ctx context.Context, name, verifier string) error {
	var exists bool
	err := b.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)`, name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check role: %w", err)
	}

	if !exists {
		if _, err := b.db.ExecContext(ctx,
			fmt.Sprintf(`CREATE ROLE %s WITH LOGIN`, quoteIdent(name))); err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
	}

	// Имя роли и verifier не параметризуются в DDL — экранируем вручную
	query := fmt.Sprintf(`ALTER ROLE %s WITH LOGIN PASSWORD %s`,
		quoteIdent(name), quoteLiteral(verifier))
	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	return nil
}

// ensureSchema создает схему приложения и раздает права:
// table_creator владеет DDL, остальные получают только USAGE.
func (b *Bootstrap) ensureSchema(ctx context.Context, roles []ManagedRole) error {
	if _, err := b.db.ExecContext(ctx,
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, quoteIdent(b.schema))); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	for _, role := range roles {
		grant := fmt.Sprintf(`GRANT USAGE ON SCHEMA %s TO %s`,
			quoteIdent(b.schema), quoteIdent(role.Name))
		if role.CanCreate {
			grant = fmt.Sprintf(`GRANT USAGE, CREATE ON SCHEMA %s TO %s`,
				quoteIdent(b.schema), quoteIdent(role.Name))
		}
		if _, err := b.db.ExecContext(ctx, grant); err != nil {
			return fmt.Errorf("failed to grant schema access to %s: %w", role.Name, err)
		}
	}
	return nil
}

// WriteCredentialsFile выгружает новые значения секретов в файл 0600 —
// дальше их забирает загрузка в хранилище секретов.
func WriteCredentialsFile(path string, creds []RotatedCredential) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}

func validRoleName(name string) error {
	if name == "" {
		return fmt.Errorf("empty role name")
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return fmt.Errorf("invalid role name %q", name)
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
