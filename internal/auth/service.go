package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/hitoshi/ghdash/internal/metrics"
	"github.com/hitoshi/ghdash/internal/model"
)

// Provider はOAuthプロバイダーのインターフェース。
type Provider interface {
	// AuthCodeURL は認可URLを生成する。
	AuthCodeURL(state string) string
	// Exchange は認可コードをアクセストークンに交換する。
	Exchange(ctx context.Context, code string) (string, error)
}

// ProfileFetcher はアクセストークンからユーザー情報を取得するインターフェース。
// github.Client が実装する。
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, token string) (*model.Identity, error)
	FetchPrimaryEmail(ctx context.Context, token string) (string, error)
}

// CallbackParams はOAuthコールバックの入力。
type CallbackParams struct {
	Code          string
	ProviderError string // errorクエリ（ユーザーが拒否した場合など）
	State         string // stateクエリ
	ExpectedState string // oauth_state Cookieの値
}

// Service はOAuthフローを実行する。
type Service struct {
	provider Provider
	profiles ProfileFetcher
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(provider Provider, profiles ProfileFetcher, m metrics.MetricsCollector, logger *slog.Logger) *Service {
	if m == nil {
		m = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		profiles: profiles,
		metrics:  m,
		logger:   logger,
	}
}

// LoginURL はログイン開始時のリダイレクト先を返す。
// Anonymous から EventLogin で遷移し、EffectRedirectToProvider の場合のみ認可URLを生成する。
func (s *Service) LoginURL(state string) (string, error) {
	return s.startLogin(StateAnonymous, state)
}

func (s *Service) startLogin(from State, state string) (string, error) {
	// 1. ログイン開始の遷移
	next, eff, err := Transition(from, Event{Type: EventLogin})
	if err != nil {
		return "", err
	}
	if eff.Kind != EffectRedirectToProvider {
		return "", fmt.Errorf("%w: login on %s", ErrInvalidTransition, from)
	}

	// 2. 認可URLの生成とリダイレクト済みへの遷移
	authURL := s.provider.AuthCodeURL(state)
	if _, _, err := Transition(next, Event{Type: EventProviderRedirected}); err != nil {
		return "", err
	}

	s.metrics.RecordAuthEvent("login_started")
	return authURL, nil
}

// HandleCallback はコールバックを処理し、成功時はIdentityを返す。
// 失敗時は *FlowError を返す。
// コールバックはログイン開始とは別のリクエストのため、AwaitingCallbackから再開する。
func (s *Service) HandleCallback(ctx context.Context, p CallbackParams) (*model.Identity, error) {
	state := StateAwaitingCallback

	// 1. コールバックの検証
	next, eff, err := Transition(state, Event{
		Type:          EventCallbackReceived,
		Code:          p.Code,
		ProviderError: p.ProviderError,
		StateValid:    stateMatches(p.State, p.ExpectedState),
	})
	if err != nil {
		return nil, err
	}
	if eff.Kind == EffectRedirectWithError {
		return nil, s.failed(&FlowError{Reason: eff.Reason})
	}
	state = next

	// 2. コード交換とプロフィール取得
	identity, exchangeErr := s.exchange(ctx, p.Code)
	if exchangeErr != nil {
		_, eff, err := Transition(state, Event{Type: EventExchangeFailed})
		if err != nil {
			return nil, err
		}
		return nil, s.failed(&FlowError{Reason: eff.Reason, Err: exchangeErr})
	}

	// 3. 認証完了
	if _, _, err := Transition(state, Event{Type: EventExchangeSucceeded}); err != nil {
		return nil, err
	}
	s.metrics.RecordAuthEvent("login_succeeded")
	s.logger.Info("user logged in",
		slog.String("user_id", identity.ProviderUserID),
		slog.String("username", identity.Username),
	)
	return identity, nil
}

// exchange は認可コードを交換し、プロフィールを取得する。
// プロフィールにメールアドレスがない場合は/user/emailsから補完する（取得失敗は無視する）。
func (s *Service) exchange(ctx context.Context, code string) (*model.Identity, error) {
	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	identity, err := s.profiles.FetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}

	if identity.Email == "" {
		email, err := s.profiles.FetchPrimaryEmail(ctx, token)
		if err != nil {
			s.logger.Warn("failed to fetch primary email",
				slog.String("user_id", identity.ProviderUserID),
				slog.String("error", err.Error()),
			)
		} else {
			identity.Email = email
		}
	}
	return identity, nil
}

func (s *Service) failed(fe *FlowError) error {
	s.metrics.RecordAuthEvent("login_failed_" + string(fe.Reason))
	attrs := []any{slog.String("reason", string(fe.Reason))}
	if fe.Err != nil {
		attrs = append(attrs, slog.String("error", fe.Err.Error()))
	}
	s.logger.Warn("oauth callback failed", attrs...)
	return fe
}

// stateMatches はstateクエリとCookieの値を定数時間で比較する。
func stateMatches(got, expected string) bool {
	if got == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
