package middleware

import "net/http"

// NewSecurityHeadersMiddleware はAPIレスポンス用のセキュリティヘッダーを付与するミドルウェアを返す。
// /api/user の本人情報やBearer方式のコールバックリダイレクトに含まれる認証情報を
// ブラウザやプロキシにキャッシュさせないため、すべてのレスポンスを Cache-Control: no-store とする。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Cache-Control", "no-store")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}
