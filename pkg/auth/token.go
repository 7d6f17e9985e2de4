package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/crewsync/pkg/config"
	"github.com/angelmondragon/crewsync/pkg/enums"
)

// clockSkew tolerates tablets whose clocks drift while offshore without NTP.
const clockSkew = 30 * time.Second

var (
	signingMethod     = jwt.SigningMethodHS256
	errMissingSecret  = errors.New("jwt secret is required")
	errMissingIssuer  = errors.New("jwt issuer is required")
	errMissingSubject = errors.New("token carries no employee for a collaborator role")
)

func checkConfig(cfg config.JWTConfig, minting bool) error {
	switch {
	case cfg.Secret == "":
		return errMissingSecret
	case cfg.Issuer == "":
		return errMissingIssuer
	case minting && cfg.ExpirationMinutes <= 0:
		return fmt.Errorf("jwt expiration minutes must be positive, got %d", cfg.ExpirationMinutes)
	}
	return nil
}

// MintAccessToken signs a token for a rig tablet or gateway. Collaborator
// tokens must name an employee; gateway tokens may omit it.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkConfig(cfg, true); err != nil {
		return "", err
	}
	if !payload.Role.IsValid() {
		return "", fmt.Errorf("invalid agent role %q", payload.Role)
	}
	employeeID := strings.TrimSpace(payload.EmployeeID)
	if employeeID == "" && payload.Role != enums.AgentRoleGateway {
		return "", errMissingSubject
	}
	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	token := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		EmployeeID: employeeID,
		DeviceID:   strings.TrimSpace(payload.DeviceID),
		Role:       payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   employeeID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(cfg.Secret))
}

// ParseAccessToken verifies signature, issuer and expiry and returns the
// claims.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if err := checkConfig(cfg, false); err != nil {
		return nil, err
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("invalid agent role %q", claims.Role)
	}
	if claims.Role == enums.AgentRoleCollaborator && strings.TrimSpace(claims.EmployeeID) == "" {
		return nil, errMissingSubject
	}
	return claims, nil
}
