package user

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// Claims represents the identity assertion transmitted via a signed token.
type Claims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role,omitempty"`
}

// TokenService issues and verifies signed, time-bounded identity assertions.
// The signing secret is injected at construction and read-only afterwards.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	nowFunc  func() time.Time // mockable
}

func NewTokenService(conf *core.Config) *TokenService {
	return &TokenService{
		secret:   []byte(conf.SecretKey),
		lifetime: conf.TokenLifetime,
		nowFunc:  time.Now,
	}
}

func (ts *TokenService) Issue(usr User) (string, error) {
	now := ts.nowFunc()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   usr.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ts.lifetime).Unix(),
		},
		Email: usr.Email,
		Role:  usr.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(ts.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Verify decodes tokenStr and reports whether it can be trusted. A malformed token,
// bad signature or past expiry all yield ok == false; Verify itself never errors so
// callers can branch without ceremony. Rejecting the request is the gate's job.
func (ts *TokenService) Verify(tokenStr string) (Claims, bool) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ts.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, false
	}
	// jwt-go checked exp against the wall clock; re-check against the injected clock
	// so expiry stays testable.
	if !claims.VerifyExpiresAt(ts.nowFunc().Unix(), true) {
		return Claims{}, false
	}
	return *claims, true
}
