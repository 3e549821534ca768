package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BackendToken — держатель bearer-токена для запросов к бэкенду.
// Если токен — JWT, из него (без проверки подписи: ключ бэкенда нам
// недоступен и не нужен) извлекается срок действия, чтобы предупредить
// о скором истечении до того, как бэкенд начнет отвечать 401.
type BackendToken struct {
	raw       string
	expiresAt time.Time
}

func NewBackendToken(raw string) *BackendToken {
	t := &BackendToken{raw: strings.TrimSpace(raw)}
	if t.raw == "" {
		return t
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(t.raw, jwt.MapClaims{})
	if err != nil {
		return t // не JWT — обычный статический токен
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		t.expiresAt = exp.Time
	}
	return t
}

// Empty сообщает, настроен ли токен вообще.
func (t *BackendToken) Empty() bool {
	return t == nil || t.raw == ""
}

// Header возвращает значение заголовка Authorization.
func (t *BackendToken) Header() string {
	return "Bearer " + t.raw
}

// ExpiresWithin — истечет ли токен в ближайшем окне d.
// Для статических токенов (без exp) всегда false.
func (t *BackendToken) ExpiresWithin(d time.Duration) bool {
	if t == nil || t.expiresAt.IsZero() {
		return false
	}
	return time.Until(t.expiresAt) < d
}
