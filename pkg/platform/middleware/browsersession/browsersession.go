// Package browsersession attaches a BrowserSessionID to every request,
// minting a new one (and its cookie) when the browser presents none or an
// invalid one. Cookies past half their lifetime are re-issued for the same
// session, so an active browser keeps its session.
package browsersession

import (
	"log/slog"
	"net/http"
	"time"

	id "storefront/pkg/domain"
	"storefront/pkg/requestcontext"
)

// CookieCodec signs and verifies session cookie values.
type CookieCodec interface {
	Encode(sid id.BrowserSessionID, now time.Time) (string, error)
	Decode(value string) (id.BrowserSessionID, time.Time, error)
	TTL() time.Duration
}

// Options controls the cookie attributes.
type Options struct {
	CookieName string
	Secure     bool
}

func Middleware(codec CookieCodec, opts Options, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			now := requestcontext.Now(ctx)

			if c, err := r.Cookie(opts.CookieName); err == nil {
				sid, issuedAt, err := codec.Decode(c.Value)
				if err == nil {
					if now.Sub(issuedAt) > codec.TTL()/2 {
						// renewal failure keeps the current, still valid cookie
						_ = issue(w, r, codec, opts, logger, sid, now)
					}
					next.ServeHTTP(w, r.WithContext(requestcontext.WithBrowserSessionID(ctx, sid)))
					return
				}
				logger.DebugContext(ctx, "discarding session cookie",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
			}

			sid := id.NewBrowserSessionID()
			if err := issue(w, r, codec, opts, logger, sid, now); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal_error"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithBrowserSessionID(ctx, sid)))
		})
	}
}

func issue(w http.ResponseWriter, r *http.Request, codec CookieCodec, opts Options, logger *slog.Logger, sid id.BrowserSessionID, now time.Time) error {
	value, err := codec.Encode(sid, now)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to issue session cookie",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     opts.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  now.Add(codec.TTL()),
		MaxAge:   int(codec.TTL().Seconds()),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
