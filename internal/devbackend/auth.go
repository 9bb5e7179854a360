package devbackend

import (
	"errors"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"konterku/engine/internal/domain"
)

type authManager struct {
	mu       sync.RWMutex
	secret   []byte
	tokenTTL time.Duration
	users    map[string]credential
}

type credential struct {
	passwordHash string
	role         string
}

type devClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func newAuthManager(secret string, tokenTTL time.Duration, adminPassword string) *authManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if adminPassword == "" {
		adminPassword = "admin123"
	}

	users := make(map[string]credential)
	if hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost); err == nil {
		users["admin"] = credential{passwordHash: string(hash), role: "admin"}
	}

	return &authManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
	}
}

func (a *authManager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))

	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.passwordHash), []byte(req.Password)) != nil {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	claims := devClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "konterku-dev",
		},
		Role: cred.role,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        cred.role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *authManager) ParseToken(tokenStr string) (string, error) {
	claims := &devClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("invalid token subject")
	}
	return sub, nil
}
