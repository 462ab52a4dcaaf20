package access

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/relabs-tech/kadmin/core/logger"
)

// DefaultTokenTTL is the lifetime of issued tokens
const DefaultTokenTTL = 7 * 24 * time.Hour

// JwtBuilder is a helper builder for JWT
type JwtBuilder struct {
	// Secret is the HMAC key tokens are signed with. This is mandatory.
	Secret string
	// TTL is the lifetime of issued tokens. Defaults to DefaultTokenTTL.
	TTL time.Duration
	// IgnoreExpiry accepts expired tokens. Only meant for debugging.
	IgnoreExpiry bool
}

// JWT issues and validates HS256 signed tokens carrying Credentials
type JWT struct {
	secret       []byte
	ttl          time.Duration
	ignoreExpiry bool
	now          func() time.Time
}

type claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWT returns a new JWT
func NewJWT(jb *JwtBuilder) (*JWT, error) {
	if jb.Secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	ttl := jb.TTL
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &JWT{secret: []byte(jb.Secret), ttl: ttl, ignoreExpiry: jb.IgnoreExpiry, now: time.Now}, nil
}

// Generate issues a new token for creds
func (j *JWT) Generate(creds Credentials) (string, error) {
	now := j.now()
	c := claims{
		UserID: creds.ID,
		Role:   creds.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.secret)
}

// Validate verifies tokenString and returns the credentials it carries
func (j *JWT) Validate(tokenString string) (*Credentials, error) {
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.ignoreExpiry {
		options = append(options, jwt.WithoutClaimsValidation())
	}
	c := claims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenString, &c, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return &Credentials{ID: c.UserID, Role: c.Role}, nil
}

// Middleware returns a middleware handler to validate JWT bearer tokens.
//
// Tokens are accepted as "Authorization: Bearer" header or as "Kadmin-JWT"-cookie.
// Requests without a token are passed on without credentials. Requests with an
// invalid token are rejected with http.StatusUnauthorized.
func (j *JWT) Middleware() mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ""
			bearer := r.Header.Get("Authorization")
			if len(bearer) > 0 && bearer != "null" {
				if len(bearer) >= 7 && strings.ToLower(bearer[:7]) == "bearer " {
					tokenString = bearer[7:]
				} else {
					tokenString = bearer
				}
			} else if cookie, _ := r.Cookie("Kadmin-JWT"); cookie != nil {
				tokenString = cookie.Value
			}
			if len(tokenString) == 0 {
				h.ServeHTTP(w, r) // no token no credentials, moving on
				return
			}

			creds, err := j.Validate(tokenString)
			if err != nil {
				logger.FromContext(r.Context()).WithError(err).Debugln("rejected token")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx, _ := logger.ContextWithLoggerIdentity(r.Context(), creds.ID)
			ctx = creds.ContextWithCredentials(ctx)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
