package auth

import (
	"strings"

	"estoque-backend/internal/config"
	"estoque-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const principalKey = "auth.principal"

// Principal is the signed-in user of the current request, taken from the
// token claims.
type Principal struct {
	UserID uint
	Name   string
	Email  string
	Role   models.UserRole
}

func (p Principal) Is(roles ...models.UserRole) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// SetPrincipal stores p on the request.
func SetPrincipal(c *fiber.Ctx, p Principal) {
	c.Locals(principalKey, p)
}

// PrincipalOf returns the user stored by JWTMiddleware; ok is false on
// routes outside it.
func PrincipalOf(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalKey).(Principal)
	return p, ok
}

// CurrentUser is PrincipalOf reduced to what the audit log records.
func CurrentUser(c *fiber.Ctx) (uint, string) {
	p, _ := PrincipalOf(c)
	return p.UserID, p.Name
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func JWTMiddleware(cfg *config.Config) fiber.Handler {
	secret := []byte(cfg.JWTSecret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (interface{}, error) { return secret, nil }

	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Cabeçalho Authorization ausente")
		}
		raw, ok := bearerToken(header)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Formato do Authorization deve ser 'Bearer <token>'")
		}

		var claims JWTCustomClaims
		if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Token inválido ou expirado")
		}
		if !claims.Role.Valid() {
			return fiber.NewError(fiber.StatusUnauthorized, "Token com perfil desconhecido")
		}

		SetPrincipal(c, Principal{
			UserID: claims.UserID,
			Name:   claims.Name,
			Email:  claims.Email,
			Role:   claims.Role,
		})
		return c.Next()
	}
}

// RequireRole lets the request through only for the listed roles. Without a
// principal the request was never authenticated, so it gets 401.
func RequireRole(allowed ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := PrincipalOf(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Usuário não autenticado")
		}
		if !p.Is(allowed...) {
			return fiber.NewError(fiber.StatusForbidden, "Sem permissão para esta operação")
		}
		return c.Next()
	}
}
