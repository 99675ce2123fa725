// Package auth はGitHub OAuthの認可コードフローを提供する。
//
// フローは純粋関数 Transition による状態機械として表現する。
//
//	Anonymous → Redirecting → AwaitingCallback → Authenticated | Failed
//
// Service は状態機械に従ってコード交換とプロフィール取得を行う。
package auth

import (
	"errors"
	"fmt"
)

// State はOAuthフローの状態。
type State int

const (
	StateAnonymous State = iota
	StateRedirecting
	StateAwaitingCallback
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateRedirecting:
		return "redirecting"
	case StateAwaitingCallback:
		return "awaiting_callback"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal は終端状態かどうかを返す。
func (s State) Terminal() bool {
	return s == StateAuthenticated || s == StateFailed
}

// EventType はフローに入力されるイベントの種別。
type EventType int

const (
	EventLogin EventType = iota
	EventProviderRedirected
	EventCallbackReceived
	EventExchangeSucceeded
	EventExchangeFailed
)

func (e EventType) String() string {
	switch e {
	case EventLogin:
		return "login"
	case EventProviderRedirected:
		return "provider_redirected"
	case EventCallbackReceived:
		return "callback_received"
	case EventExchangeSucceeded:
		return "exchange_succeeded"
	case EventExchangeFailed:
		return "exchange_failed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Event はフローへの入力。Code, ProviderError, StateValid はEventCallbackReceivedでのみ使用する。
type Event struct {
	Type          EventType
	Code          string
	ProviderError string
	StateValid    bool
}

// EffectKind は遷移に伴って呼び出し元が実行すべき副作用の種別。
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectRedirectToProvider
	EffectExchangeCode
	EffectIssueCredential
	EffectRedirectWithError
)

// Reason はフロー失敗の理由。ログイン画面へのリダイレクトのerrorクエリに使用する。
type Reason string

const (
	ReasonAccessDenied   Reason = "access_denied"
	ReasonProviderError  Reason = "provider_error"
	ReasonInvalidState   Reason = "invalid_state"
	ReasonMissingCode    Reason = "missing_code"
	ReasonExchangeFailed Reason = "exchange_failed"
)

// Effect は遷移の副作用。ReasonはEffectRedirectWithErrorの場合のみ設定される。
type Effect struct {
	Kind   EffectKind
	Reason Reason
}

var (
	// ErrInvalidTransition は現在の状態で受け付けないイベントを表す。
	ErrInvalidTransition = errors.New("auth: invalid transition")
	// ErrTerminalState は終端状態へのイベント入力を表す。
	ErrTerminalState = errors.New("auth: flow already finished")
)

// FlowError はフローがFailedで終了したことを表す。
type FlowError struct {
	Reason Reason
	Err    error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth flow failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("oauth flow failed (%s)", e.Reason)
}

func (e *FlowError) Unwrap() error { return e.Err }

// Transition は現在の状態とイベントから次の状態と副作用を返す。
// 受け付けない組み合わせでは状態を変えずにエラーを返す。
func Transition(state State, ev Event) (State, Effect, error) {
	if state.Terminal() {
		return state, Effect{}, fmt.Errorf("%w: %s on %s", ErrTerminalState, ev.Type, state)
	}

	switch {
	case state == StateAnonymous && ev.Type == EventLogin:
		return StateRedirecting, Effect{Kind: EffectRedirectToProvider}, nil

	case state == StateRedirecting && ev.Type == EventProviderRedirected:
		return StateAwaitingCallback, Effect{}, nil

	case state == StateAwaitingCallback && ev.Type == EventCallbackReceived:
		// stateの検証はプロバイダーの応答内容より先に行う
		if !ev.StateValid {
			return fail(ReasonInvalidState)
		}
		if ev.ProviderError != "" {
			if ev.ProviderError == string(ReasonAccessDenied) {
				return fail(ReasonAccessDenied)
			}
			return fail(ReasonProviderError)
		}
		if ev.Code == "" {
			return fail(ReasonMissingCode)
		}
		return StateAwaitingCallback, Effect{Kind: EffectExchangeCode}, nil

	case state == StateAwaitingCallback && ev.Type == EventExchangeSucceeded:
		return StateAuthenticated, Effect{Kind: EffectIssueCredential}, nil

	case state == StateAwaitingCallback && ev.Type == EventExchangeFailed:
		return fail(ReasonExchangeFailed)
	}

	return state, Effect{}, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev.Type, state)
}

func fail(reason Reason) (State, Effect, error) {
	return StateFailed, Effect{Kind: EffectRedirectWithError, Reason: reason}, nil
}
