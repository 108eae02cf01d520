package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/classroom-client/internal/config"
	"github.com/stemsi/classroom-client/internal/persistence"
	"github.com/stemsi/classroom-client/internal/session"
)

// HeaderAuthStatus flags public pages served to anonymous visitors.
const HeaderAuthStatus = "x-auth-status"

// Paths that require a session, and public paths with a reduced anonymous version.
var (
	ProtectedPrefixes = []string{"/home", "/calendar", "/class", "/tasks", "/settings"}
	PublicPrefixes    = []string{"/about", "/privacy", "/terms", "/help", "/contact"}
)

// SnapshotReader exposes the persisted session snapshot as stored.
type SnapshotReader interface {
	Raw() ([]byte, bool)
}

// TokenVerifier checks a session token value.
type TokenVerifier interface {
	Verify(value string, now time.Time) (*session.Claims, error)
}

// SessionGate guards page routes using only the persisted snapshot. The
// snapshot is taken from the auth-storage cookie when the browser sends one,
// otherwise from the local medium.
func SessionGate(reader SnapshotReader, verifier TokenVerifier, now func() time.Time) gin.HandlerFunc {
	cookie := config.CacheKey.SessionSnapshotKey()

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		protected := matchPrefix(path, ProtectedPrefixes)
		public := matchPrefix(path, PublicPrefixes)
		if !protected && !public {
			c.Next()
			return
		}

		if authenticated(c, cookie, reader, verifier, now()) {
			c.Next()
			return
		}

		if protected {
			target := url.URL{Path: "/login", RawQuery: url.Values{"callbackUrl": {path}}.Encode()}
			c.Redirect(http.StatusTemporaryRedirect, target.String())
			c.Abort()
			return
		}
		c.Header(HeaderAuthStatus, "unauthenticated")
		c.Next()
	}
}

func authenticated(c *gin.Context, cookie string, reader SnapshotReader, verifier TokenVerifier, now time.Time) bool {
	var raw []byte
	if v, err := c.Cookie(cookie); err == nil && v != "" {
		raw = []byte(v)
	} else if b, ok := reader.Raw(); ok {
		raw = b
	}
	if raw == nil || !persistence.IsAuthenticated(raw, now) {
		return false
	}

	snap, ok := persistence.Decode(raw)
	if !ok {
		return false
	}
	_, err := verifier.Verify(snap.Token.Value, now)
	return err == nil
}

// matchPrefix matches whole path segments, so /class matches /class/x but not /classes.
func matchPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
