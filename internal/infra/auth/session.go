package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthError — отказ провайдера сессий. Отдельный тип, чтобы выше по стеку
// отличать его от сетевых проблем самого фетча аналитики.
type AuthError struct {
	Status int
	Cause  error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth provider failure: %v", e.Cause)
	}
	return fmt.Sprintf("auth provider failure: status %d", e.Status)
}

func (e *AuthError) Unwrap() error { return e.Cause }

// SessionProvider получает identity-токен у внешнего провайдера и кэширует его.
// Явно передаваемый объект вместо глобального синглтона: кто фетчит — тот и
// держит сессию. Токен перевыпускается, когда до exp остается меньше leeway.
type SessionProvider struct {
	tokenURL     string
	clientID     string
	clientSecret string
	leeway       time.Duration
	httpClient   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewSessionProvider(tokenURL, clientID, clientSecret string, leeway time.Duration, httpClient *http.Client) *SessionProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &SessionProvider{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		leeway:       leeway,
		httpClient:   httpClient,
	}
}

// Token возвращает действующий identity-токен, при необходимости получая новый.
func (p *SessionProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expiresAt.Add(-p.leeway)) {
		return p.token, nil
	}

	token, err := p.acquire(ctx)
	if err != nil {
		return "", err
	}

	p.token = token
	p.expiresAt = tokenExpiry(token)
	return p.token, nil
}

// Invalidate сбрасывает кэш — например, после 401 от backend-а.
func (p *SessionProvider) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()
}

func (p *SessionProvider) acquire(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"client_id":     p.clientID,
		"client_secret": p.clientSecret,
	})
	if err != nil {
		return "", &AuthError{Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, bytes.NewReader(body))
	if err != nil {
		return "", &AuthError{Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", &AuthError{Status: resp.StatusCode}
	}

	var session struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", &AuthError{Cause: fmt.Errorf("invalid session response: %w", err)}
	}
	if session.Token == "" {
		return "", &AuthError{Cause: fmt.Errorf("session response without token")}
	}
	return session.Token, nil
}

// tokenExpiry достает exp из JWT без проверки подписи: валидирует токен
// backend, нам достаточно знать момент перевыпуска. Непарсящийся токен
// считаем короткоживущим.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Now().Add(1 * time.Minute)
	}
	return claims.ExpiresAt.Time
}
