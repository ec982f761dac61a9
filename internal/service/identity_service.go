package service

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/config"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

// IdentityService turns bearer tokens issued by the identity service into
// principals. Credentials are never checked here.
type IdentityService struct {
	secret []byte
	issuer string
	roles  map[string]models.Role
	logger *zap.Logger
}

// NewIdentityService binds the configured profile codes to workflow roles.
func NewIdentityService(jwtCfg config.JWTConfig, roles config.RolesConfig, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	codes := make(map[string]models.Role, 4)
	bind := func(code string, role models.Role) {
		if code = strings.TrimSpace(code); code != "" {
			codes[code] = role
		}
	}
	bind(roles.DirectorCode, models.RoleDirector)
	bind(roles.AssistantCode, models.RoleAssistant)
	bind(roles.DistrictCode, models.RoleDistrictFocalPoint)
	bind(roles.CentralCode, models.RoleCentralUnit)

	return &IdentityService{secret: []byte(jwtCfg.Secret), issuer: jwtCfg.Issuer, roles: codes, logger: logger}
}

// RoleFor maps a profile code to a role; unknown codes yield "".
func (s *IdentityService) RoleFor(code string) models.Role {
	return s.roles[strings.TrimSpace(code)]
}

// Authenticate validates the token signature and resolves the principal.
func (s *IdentityService) Authenticate(tokenString string) (*models.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.IdentityClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	username := claims.Username
	if username == "" {
		username = claims.Subject
	}
	if username == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no username")
	}

	code := string(claims.ProfileCode)
	if code == "" {
		code = string(claims.JobCode)
	}
	role := s.RoleFor(code)
	if role == "" {
		s.logger.Debug("unknown profile code", zap.String("username", username), zap.String("profile_code", code))
	}

	return &models.Principal{
		Username:  username,
		Name:      claims.Name,
		Email:     claims.Email,
		CPF:       claims.CPF,
		Role:      role,
		UnitScope: strings.TrimSpace(claims.UnitCode),
	}, nil
}
