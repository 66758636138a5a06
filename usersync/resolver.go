package usersync

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"github.com/flippback/prebid-flipp/config"
	"github.com/flippback/prebid-flipp/metrics"
	"github.com/flippback/prebid-flipp/util/uuidutil"
	"github.com/golang/glog"
)

// invalidKeyPrefix marks a caller supplied key as a placeholder that must be ignored.
const invalidKeyPrefix = "#"

// KeyResolver resolves the stable user key sent with every campaign request.
//
// Sources are tried in order: the key already resolved in the session, a caller
// supplied hint, the user key cookie, and finally a freshly generated key.
type KeyResolver struct {
	syncTemplate *template.Template
	cookieName   string
	generator    uuidutil.UUIDGenerator
	pixel        PixelFirer
	me           metrics.MetricsEngine
}

// NewKeyResolver parses syncURL, a template taking {{.UID}}. An empty syncURL disables the pixel.
func NewKeyResolver(syncURL string, cookieName string, generator uuidutil.UUIDGenerator, pixel PixelFirer, me metrics.MetricsEngine) (*KeyResolver, error) {
	resolver := &KeyResolver{
		cookieName: cookieName,
		generator:  generator,
		pixel:      pixel,
		me:         me,
	}
	if syncURL != "" {
		syncTemplate, err := template.New("userSyncTemplate").Parse(syncURL)
		if err != nil {
			return nil, fmt.Errorf("invalid user sync URL template %q: %v", syncURL, err)
		}
		resolver.syncTemplate = syncTemplate
	}
	if resolver.me == nil {
		resolver.me = &metrics.NilMetricsEngine{}
	}
	return resolver, nil
}

// Resolve returns the user key for this page load, or "" if none could be produced.
// The sync pixel fires at most once per session whatever the source of the key.
// A nil session has no page load to latch the pixel on, so it never fires.
func (r *KeyResolver) Resolve(ctx context.Context, session *Session, cookies CookieStore, hint string) string {
	if session == nil {
		session = &Session{synced: true}
	}

	if key := session.Key(); key != "" {
		r.me.RecordUserKey(metrics.UserKeySourceSession)
		r.sync(ctx, session, key)
		return key
	}

	if hint != "" && !strings.HasPrefix(hint, invalidKeyPrefix) {
		session.key = hint
		r.me.RecordUserKey(metrics.UserKeySourceParam)
		r.sync(ctx, session, hint)
		return hint
	}

	cookiesEnabled := cookies != nil && cookies.Enabled()
	if cookiesEnabled {
		// Cookie keys are not cached in the session.
		if key := cookies.Get(r.cookieName); key != "" {
			r.me.RecordUserKey(metrics.UserKeySourceCookie)
			r.sync(ctx, session, key)
			return key
		}
	}

	key, err := r.generate()
	if err != nil {
		glog.Warningf("Unable to generate a flipp user key: %v", err)
		r.me.RecordUserKey(metrics.UserKeySourceNone)
		return ""
	}
	session.key = key
	if cookiesEnabled {
		cookies.Set(r.cookieName, key)
	}
	r.me.RecordUserKey(metrics.UserKeySourceGenerated)
	r.sync(ctx, session, key)
	return key
}

func (r *KeyResolver) generate() (string, error) {
	if r.generator == nil {
		return "", fmt.Errorf("no user key generator configured")
	}
	key, err := r.generator.Generate()
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("user key generator returned an empty key")
	}
	return key, nil
}

func (r *KeyResolver) sync(ctx context.Context, session *Session, key string) {
	if session.synced {
		return
	}
	session.synced = true

	if r.syncTemplate == nil || r.pixel == nil {
		return
	}
	syncURL, err := r.syncURL(key)
	if err != nil {
		glog.Errorf("Unable to build user sync URL: %v", err)
		return
	}
	r.pixel.Fire(ctx, syncURL)
	r.me.RecordSyncPixel()
}

func (r *KeyResolver) syncURL(key string) (string, error) {
	var resolved bytes.Buffer
	params := config.UserSyncTemplateParams{UID: url.QueryEscape(key)}
	if err := r.syncTemplate.Execute(&resolved, params); err != nil {
		return "", err
	}
	return resolved.String(), nil
}
