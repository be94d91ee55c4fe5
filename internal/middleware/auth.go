// Package middleware содержит HTTP middleware сервиса контроля уровней продавцов.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

type contextKey string

const callerKey contextKey = "caller"

// TriggerTokenHeader задаёт заголовок с подписанным токеном планировщика или внутреннего сервиса.
const TriggerTokenHeader = "X-Trigger-Token"

// TriggerAuth проверяет подписанный токен вызывающей стороны для внутренних маршрутов.
// Токен имеет вид "<caller>.<hex(hmac-sha256(caller))>".
type TriggerAuth struct {
	secretKey []byte
}

// NewTriggerAuth создаёт новый экземпляр TriggerAuth с указанным секретным ключом.
// При пустом секрете генерируется случайный ключ, и внешние токены не принимаются.
func NewTriggerAuth(secret string) *TriggerAuth {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &TriggerAuth{
		secretKey: key,
	}
}

// Middleware проверяет токен и добавляет имя вызывающей стороны в контекст запроса.
func (a *TriggerAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(TriggerTokenHeader)
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		caller, ok := a.parseToken(token)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SignToken возвращает токен для указанной вызывающей стороны.
func (a *TriggerAuth) SignToken(caller string) string {
	return caller + "." + hex.EncodeToString(a.sign(caller))
}

func (a *TriggerAuth) sign(caller string) []byte {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(caller))
	return mac.Sum(nil)
}

func (a *TriggerAuth) parseToken(token string) (string, bool) {
	idx := strings.LastIndex(token, ".")
	if idx <= 0 || idx == len(token)-1 {
		return "", false
	}

	caller := token[:idx]
	signature, err := hex.DecodeString(token[idx+1:])
	if err != nil {
		return "", false
	}

	if !hmac.Equal(signature, a.sign(caller)) {
		return "", false
	}

	return caller, true
}

// GetCallerFromContext извлекает имя вызывающей стороны из контекста запроса.
func GetCallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(callerKey).(string)
	return caller, ok
}
