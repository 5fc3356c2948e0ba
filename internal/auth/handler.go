package auth

import (
	"strings"

	"estoque-backend/internal/config"
	"estoque-backend/internal/database"
	"estoque-backend/internal/models"
	"estoque-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type RegisterAdminRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8"`
}

type CreateUserRequest struct {
	Name     string          `json:"name" validate:"required,max=100"`
	Email    string          `json:"email" validate:"required,email,max=100"`
	Password string          `json:"password" validate:"required,min=8"`
	Role     models.UserRole `json:"role" validate:"required,oneof=admin operator viewer"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func userJSON(u *models.User) fiber.Map {
	return fiber.Map{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
}

// RegisterAdminHandler bootstraps the first admin. Closed once one exists.
func RegisterAdminHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterAdminRequest
		if err := validation.Body(c, &body); err != nil {
			return err
		}

		var count int64
		database.DB.Model(&models.User{}).
			Where("role = ?", models.RoleAdmin).
			Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusForbidden, "Já existe um administrador")
		}

		user, err := createUser(body.Name, body.Email, body.Password, models.RoleAdmin)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(userJSON(user))
	}
}

// POST /api/users (admin)
func CreateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := validation.Body(c, &body); err != nil {
			return err
		}
		user, err := createUser(body.Name, body.Email, body.Password, body.Role)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(userJSON(user))
	}
}

// GET /api/users (admin)
func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var users []models.User
		if err := database.DB.Order("name").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Usuários não puderam ser listados")
		}
		resp := make([]fiber.Map, 0, len(users))
		for i := range users {
			resp = append(resp, userJSON(&users[i]))
		}
		return c.JSON(resp)
	}
}

func createUser(name, email, password string, role models.UserRole) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	var existing int64
	database.DB.Model(&models.User{}).Where("email = ?", email).Count(&existing)
	if existing > 0 {
		return nil, fiber.NewError(fiber.StatusConflict, "Email já cadastrado")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Senha não pôde ser processada")
	}

	user := models.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Usuário não pôde ser criado")
	}
	return &user, nil
}

func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := validation.Body(c, &body); err != nil {
			return err
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		var user models.User
		if err := database.DB.Where("email = ?", body.Email).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email ou senha incorretos")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email ou senha incorretos")
		}

		token, err := GenerateToken(cfg.JWTSecret, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token não pôde ser gerado")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  userJSON(&user),
		})
	}
}

func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, _ := PrincipalOf(c)

		var user models.User
		if err := database.DB.First(&user, p.UserID).Error; err == nil {
			return c.JSON(userJSON(&user))
		}

		// fall back to the token claims
		return c.JSON(fiber.Map{
			"id":    p.UserID,
			"name":  p.Name,
			"email": p.Email,
			"role":  p.Role,
		})
	}
}
