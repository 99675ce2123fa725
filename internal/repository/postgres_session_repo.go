package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/ghdash/internal/model"
	"github.com/hitoshi/ghdash/internal/security"
)

// storedIdentity はsessions.identity列に保存するJSONの形。
// model.IdentityはAccessTokenをJSONに出力しないため、保存用に別の型を使う。
type storedIdentity struct {
	ProviderUserID string `json:"provider_user_id"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name,omitempty"`
	Email          string `json:"email,omitempty"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	AccessToken    string `json:"access_token"`
}

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// 複数インスタンスでセッションを共有する構成向け。
// encryptorが有効な場合、アクセストークンは暗号化して保存する。
type PostgresSessionRepo struct {
	db        *sql.DB
	encryptor *security.Encryptor
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB, encryptor *security.Encryptor) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db, encryptor: encryptor}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	payload, err := r.encodeIdentity(session.Identity)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, provider_user_id, identity, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.Identity.ProviderUserID, payload, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, identity, expires_at, created_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &payload, &session.ExpiresAt, &session.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	identity, err := r.decodeIdentity(payload)
	if err != nil {
		return nil, err
	}
	session.Identity = identity

	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れのセッションを削除する。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return n, nil
}

// PingContext はデータベースへの接続を確認する。
func (r *PostgresSessionRepo) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// encodeIdentity はIdentityを保存用JSONに変換する。
func (r *PostgresSessionRepo) encodeIdentity(identity model.Identity) ([]byte, error) {
	sealed, err := r.encryptor.Encrypt(identity.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to seal access token: %w", err)
	}

	payload, err := json.Marshal(storedIdentity{
		ProviderUserID: identity.ProviderUserID,
		Username:       identity.Username,
		DisplayName:    identity.DisplayName,
		Email:          identity.Email,
		AvatarURL:      identity.AvatarURL,
		AccessToken:    sealed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode identity: %w", err)
	}
	return payload, nil
}

// decodeIdentity は保存用JSONからIdentityを復元する。
func (r *PostgresSessionRepo) decodeIdentity(payload []byte) (model.Identity, error) {
	var stored storedIdentity
	if err := json.Unmarshal(payload, &stored); err != nil {
		return model.Identity{}, fmt.Errorf("failed to decode identity: %w", err)
	}

	accessToken, err := r.encryptor.Decrypt(stored.AccessToken)
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to open access token: %w", err)
	}

	return model.Identity{
		ProviderUserID: stored.ProviderUserID,
		Username:       stored.Username,
		DisplayName:    stored.DisplayName,
		Email:          stored.Email,
		AvatarURL:      stored.AvatarURL,
		AccessToken:    accessToken,
	}, nil
}

// compile-time interface check
var (
	_ SessionRepository = (*PostgresSessionRepo)(nil)
	_ Pinger            = (*PostgresSessionRepo)(nil)
)
