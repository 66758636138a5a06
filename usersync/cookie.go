package usersync

import (
	"net/http"
	"time"

	"github.com/flippback/prebid-flipp/config"
	"github.com/flippback/prebid-flipp/util/httputil"
)

// CookieStore is the persistent storage the resolver reads and writes the user key through.
type CookieStore interface {
	// Enabled is false when the user or host forbids cookie storage.
	Enabled() bool
	Get(name string) string
	Set(name, value string)
}

// HTTPCookieStore reads cookies from an inbound request and writes them back as
// Set-Cookie headers on its response.
//
// Values written through Set are visible to later Get calls on the same store,
// the way a browser cookie jar behaves within one page load.
type HTTPCookieStore struct {
	r       *http.Request
	w       http.ResponseWriter
	cfg     *config.UserKeyCookie
	optOut  bool
	written map[string]string
}

// NewHTTPCookieStore checks the host opt-out cookie once, up front.
func NewHTTPCookieStore(w http.ResponseWriter, r *http.Request, cfg *config.UserKeyCookie) *HTTPCookieStore {
	return &HTTPCookieStore{
		r:       r,
		w:       w,
		cfg:     cfg,
		optOut:  checkOptOut(r, cfg),
		written: make(map[string]string),
	}
}

func (s *HTTPCookieStore) Enabled() bool {
	return !s.optOut
}

func (s *HTTPCookieStore) Get(name string) string {
	if s.optOut {
		return ""
	}
	if value, ok := s.written[name]; ok {
		return value
	}
	cookie, err := s.r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *HTTPCookieStore) Set(name, value string) {
	if s.optOut {
		return
	}
	s.written[name] = value
	writeCookie(s.w, name, value, s.cfg, httputil.IsSecure(s.r))
}

// writeCookie sets the cookie onto the header. Browsers drop SameSite=None cookies
// that are not Secure, so plain http requests fall back to Lax.
func writeCookie(w http.ResponseWriter, name, value string, cfg *config.UserKeyCookie, secure bool) {
	httpCookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Expires:  time.Now().Add(cfg.TTLDuration()),
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}

	if secure {
		httpCookie.Secure = true
		httpCookie.SameSite = http.SameSiteNoneMode
	}

	if cfg.Domain != "" {
		httpCookie.Domain = cfg.Domain
	}

	w.Header().Add("Set-Cookie", httpCookie.String())
}

func checkOptOut(r *http.Request, cfg *config.UserKeyCookie) bool {
	if cfg.OptOutCookie.Name == "" {
		return false
	}
	optOutCookie, err := r.Cookie(cfg.OptOutCookie.Name)
	return err == nil && optOutCookie.Value == cfg.OptOutCookie.Value
}
