package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"estoque-backend/internal/config"
	"estoque-backend/internal/database"
	"estoque-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

func setup(t *testing.T) (*fiber.App, *config.Config) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	database.DB = db

	cfg := &config.Config{JWTSecret: strings.Repeat("s", 32)}
	app := fiber.New()
	api := app.Group("/api")
	api.Post("/auth/register-admin", RegisterAdminHandler(cfg))
	api.Post("/auth/login", LoginHandler(cfg))

	protected := api.Group("", JWTMiddleware(cfg))
	protected.Get("/auth/me", MeHandler())
	protected.Post("/users", RequireRole(models.RoleAdmin), CreateUserHandler())
	return app, cfg
}

func do(t *testing.T, app *fiber.App, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func login(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()
	resp, body := do(t, app, "POST", "/api/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("login %s: status %d", email, resp.StatusCode)
	}
	tok, _ := body["token"].(string)
	return tok
}

func TestRegisterAdmin_OnlyOnce(t *testing.T) {
	app, _ := setup(t)
	payload := `{"name":"Ana","email":"ANA@example.com","password":"segredo123"}`

	resp, body := do(t, app, "POST", "/api/auth/register-admin", "", payload)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["email"] != "ana@example.com" || body["role"] != "admin" {
		t.Errorf("body = %v", body)
	}

	resp, _ = do(t, app, "POST", "/api/auth/register-admin", "", `{"name":"B","email":"b@example.com","password":"segredo123"}`)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("second admin status = %d, want 403", resp.StatusCode)
	}
}

func TestRegisterAdmin_ValidatesBody(t *testing.T) {
	app, _ := setup(t)
	resp, _ := do(t, app, "POST", "/api/auth/register-admin", "", `{"name":"Ana","email":"nope","password":"123"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestLoginAndMe(t *testing.T) {
	app, _ := setup(t)
	do(t, app, "POST", "/api/auth/register-admin", "", `{"name":"Ana","email":"ana@example.com","password":"segredo123"}`)

	resp, _ := do(t, app, "POST", "/api/auth/login", "", `{"email":"ana@example.com","password":"errada123"}`)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("wrong password status = %d", resp.StatusCode)
	}

	token := login(t, app, "ana@example.com", "segredo123")
	resp, me := do(t, app, "GET", "/api/auth/me", token, "")
	if resp.StatusCode != fiber.StatusOK || me["name"] != "Ana" {
		t.Errorf("me = %d %v", resp.StatusCode, me)
	}

	resp, _ = do(t, app, "GET", "/api/auth/me", "garbage", "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("bad token status = %d", resp.StatusCode)
	}
}

func TestCreateUser_AdminOnly(t *testing.T) {
	app, _ := setup(t)
	do(t, app, "POST", "/api/auth/register-admin", "", `{"name":"Ana","email":"ana@example.com","password":"segredo123"}`)
	admin := login(t, app, "ana@example.com", "segredo123")

	resp, _ := do(t, app, "POST", "/api/users", admin, `{"name":"Op","email":"op@example.com","password":"segredo123","role":"operator"}`)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create operator status = %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "POST", "/api/users", admin, `{"name":"Op","email":"op@example.com","password":"segredo123","role":"operator"}`)
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("duplicate email status = %d, want 409", resp.StatusCode)
	}
	resp, _ = do(t, app, "POST", "/api/users", admin, `{"name":"X","email":"x@example.com","password":"segredo123","role":"root"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("unknown role status = %d, want 400", resp.StatusCode)
	}

	op := login(t, app, "op@example.com", "segredo123")
	resp, _ = do(t, app, "POST", "/api/users", op, `{"name":"Y","email":"y@example.com","password":"segredo123","role":"viewer"}`)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("operator creating users status = %d, want 403", resp.StatusCode)
	}
}
