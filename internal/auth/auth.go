package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/pkg/config"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"go.uber.org/fx"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrMissingIdentity = errors.New("wallet address is required")
)

// Claims carry the signed-in wallet and, when known, its Farcaster id.
type Claims struct {
	jwt.RegisteredClaims
	WalletAddress string `json:"wallet_address"`
	FID           int64  `json:"fid,omitempty"`
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewManager(secret []byte, ttl time.Duration, clock clockwork.Clock) *Manager {
	return &Manager{secret: secret, ttl: ttl, clock: clock}
}

type Opts struct {
	fx.In
	Config *config.Config
	Logger logger.Logger
	Clock  clockwork.Clock
}

// New uses AUTH_JWT_SECRET, or a random per-process secret when it is unset.
func New(opts Opts) (*Manager, error) {
	secret := []byte(opts.Config.Auth.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		opts.Logger.Warn("AUTH_JWT_SECRET not set, sessions will not survive a restart")
	}
	return NewManager(secret, opts.Config.Auth.TokenTTL, opts.Clock), nil
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a session token for id.
func (m *Manager) Issue(id domain.Identity) (string, time.Time, error) {
	if id.SubjectKey() == "" {
		return "", time.Time{}, ErrMissingIdentity
	}

	now := m.clock.Now()
	expiresAt := now.Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.SubjectKey(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		WalletAddress: id.SubjectKey(),
		FID:           id.FID,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse validates tokenString and returns the identity it was issued for.
func (m *Manager) Parse(tokenString string) (domain.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.WalletAddress == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	return domain.Identity{WalletAddress: claims.WalletAddress, FID: claims.FID}, nil
}

var Module = fx.Module("auth", fx.Provide(New))
