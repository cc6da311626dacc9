package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AdminKeyHeader - заголовок с ключом администратора.
const AdminKeyHeader = "X-Admin-Key"

// AdminKey пропускает запрос только при совпадении ключа администратора.
// Пустой ключ запрещает доступ ко всем административным маршрутам.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminKeyHeader)
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
