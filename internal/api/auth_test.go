package api

import (
	"fmt"
	"net/http"
	"testing"
)

// ─── Registration Tests ────────────────────────────────────────────

func TestRegister(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{
		"username": "alice",
		"email": "alice@example.com",
		"password": "correct-horse-battery",
		"first_name": "Alice",
		"last_name": "Smith"
	}`
	w := doRequest(t, router, http.MethodPost, "/auth/register", "", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	resp := decodeBody(t, w)
	if resp["message"] != "User registered successfully" {
		t.Errorf("message = %v, want %q", resp["message"], "User registered successfully")
	}

	user, ok := resp["user"].(map[string]any)
	if !ok {
		t.Fatalf("user is not an object: %T", resp["user"])
	}
	if user["username"] != "alice" {
		t.Errorf("username = %v, want alice", user["username"])
	}
	if user["first_name"] != "Alice" {
		t.Errorf("first_name = %v, want Alice", user["first_name"])
	}
	if user["is_active"] != true {
		t.Errorf("is_active = %v, want true", user["is_active"])
	}

	// New accounts receive the Employee role and its permission grants
	roles, ok := user["roles"].([]any)
	if !ok || len(roles) != 1 {
		t.Fatalf("roles = %v, want one role", user["roles"])
	}
	if name := roles[0].(map[string]any)["name"]; name != "Employee" {
		t.Errorf("role name = %v, want Employee", name)
	}

	perms, ok := user["permissions"].([]any)
	if !ok || len(perms) != 1 || perms[0] != "user_read" {
		t.Errorf("permissions = %v, want [user_read]", user["permissions"])
	}
}

func TestRegister_MissingFields(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing username", `{"email": "a@example.com", "password": "pw-123456"}`, "username is required"},
		{"missing email", `{"username": "a", "password": "pw-123456"}`, "email is required"},
		{"missing password", `{"username": "a", "email": "a@example.com"}`, "password is required"},
		{"empty body", `{}`, "username is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodPost, "/auth/register", "", tt.body)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if got := decodeBody(t, w)["error"]; got != tt.wantMsg {
				t.Errorf("error = %v, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	registerUser(t, router, "frank", "some-password-1")

	// Same username, fresh email
	body := `{"username": "frank", "email": "frank2@example.com", "password": "some-password-2"}`
	w := doRequest(t, router, http.MethodPost, "/auth/register", "", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate username status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeBody(t, w)["error"]; got != "Username already exists" {
		t.Errorf("error = %v, want %q", got, "Username already exists")
	}

	// Fresh username, same email
	body = `{"username": "franklin", "email": "frank@example.com", "password": "some-password-3"}`
	w = doRequest(t, router, http.MethodPost, "/auth/register", "", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate email status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeBody(t, w)["error"]; got != "Email already exists" {
		t.Errorf("error = %v, want %q", got, "Email already exists")
	}
}

func TestRegister_InvalidJSON(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := doRequest(t, router, http.MethodPost, "/auth/register", "", "not json")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Login Tests ───────────────────────────────────────────────────

func TestLogin_Success(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := fmt.Sprintf(`{"username_or_email": "admin", "password": %q}`, testAdminPassword)
	w := doRequest(t, router, http.MethodPost, "/auth/login", "", body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeBody(t, w)
	if resp["message"] != "Login successful" {
		t.Errorf("message = %v, want %q", resp["message"], "Login successful")
	}

	token, ok := resp["token"].(string)
	if !ok || token == "" {
		t.Error("expected token to be a non-empty string")
	}

	user := resp["user"].(map[string]any)
	if user["username"] != "admin" {
		t.Errorf("username = %v, want admin", user["username"])
	}
}

func TestLogin_ByEmail(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	token := loginAs(t, router, "admin@gatehouse.local", testAdminPassword)
	if token == "" {
		t.Error("expected token from email login")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name string
		body string
	}{
		{"wrong password", `{"username_or_email": "admin", "password": "wrong"}`},
		{"unknown user", `{"username_or_email": "nobody", "password": "irrelevant"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodPost, "/auth/login", "", tt.body)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if got := decodeBody(t, w)["error"]; got != "Invalid credentials" {
				t.Errorf("error = %v, want %q", got, "Invalid credentials")
			}
		})
	}
}

func TestLogin_MissingFields(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := doRequest(t, router, http.MethodPost, "/auth/login", "", `{"username_or_email": "admin"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeBody(t, w)["error"]; got != "Username or email and password are required" {
		t.Errorf("error = %v, want %q", got, "Username or email and password are required")
	}
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	userID := registerUser(t, router, "gina", "gina-password-1")
	adminToken := loginAs(t, router, "admin", testAdminPassword)

	// Deactivate through the admin endpoint
	w := doRequest(t, router, http.MethodPut, "/users/"+userID, adminToken, `{"is_active": false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	// Correct credentials, deactivated account
	body := `{"username_or_email": "gina", "password": "gina-password-1"}`
	w = doRequest(t, router, http.MethodPost, "/auth/login", "", body)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if got := decodeBody(t, w)["error"]; got != "Account is deactivated" {
		t.Errorf("error = %v, want %q", got, "Account is deactivated")
	}
}

// ─── Logout Tests ──────────────────────────────────────────────────

func TestLogout_RevokesToken(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	token := loginAs(t, router, "admin", testAdminPassword)

	w := doRequest(t, router, http.MethodPost, "/auth/logout", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if got := decodeBody(t, w)["message"]; got != "Successfully logged out" {
		t.Errorf("message = %v, want %q", got, "Successfully logged out")
	}

	// The revoked token no longer authenticates
	w = doRequest(t, router, http.MethodGet, "/auth/profile", token, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("profile after logout status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// ─── Profile Tests ─────────────────────────────────────────────────

func TestProfile_Get(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	token := loginAs(t, router, "admin", testAdminPassword)
	w := doRequest(t, router, http.MethodGet, "/auth/profile", token, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	user := decodeBody(t, w)["user"].(map[string]any)
	if user["username"] != "admin" {
		t.Errorf("username = %v, want admin", user["username"])
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("password_hash must not appear in responses")
	}
}

func TestProfile_RequiresAuth(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"garbage token", "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodGet, "/auth/profile", tt.token, "")

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if got := decodeBody(t, w)["error"]; got != "Authentication required" {
				t.Errorf("error = %v, want %q", got, "Authentication required")
			}
		})
	}
}

func TestProfile_Update(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	token := loginAs(t, router, "admin", testAdminPassword)

	body := `{"first_name": "Root", "last_name": "Operator"}`
	w := doRequest(t, router, http.MethodPut, "/auth/profile", token, body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeBody(t, w)
	if resp["message"] != "Profile updated successfully" {
		t.Errorf("message = %v, want %q", resp["message"], "Profile updated successfully")
	}

	user := resp["user"].(map[string]any)
	if user["first_name"] != "Root" {
		t.Errorf("first_name = %v, want Root", user["first_name"])
	}

	// Untouched fields survive the patch
	if user["username"] != "admin" {
		t.Errorf("username = %v, want admin", user["username"])
	}
}

func TestProfile_UpdateDuplicateEmail(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	registerUser(t, router, "bob", "bob-password-12")
	token := loginAs(t, router, "admin", testAdminPassword)

	w := doRequest(t, router, http.MethodPut, "/auth/profile", token, `{"email": "bob@example.com"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeBody(t, w)["error"]; got != "Email already exists" {
		t.Errorf("error = %v, want %q", got, "Email already exists")
	}
}

// ─── Change Password Tests ─────────────────────────────────────────

func TestChangePassword(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	registerUser(t, router, "carol", "old-password-123")
	token := loginAs(t, router, "carol", "old-password-123")

	body := `{"current_password": "old-password-123", "new_password": "new-password-456"}`
	w := doRequest(t, router, http.MethodPost, "/auth/change-password", token, body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if got := decodeBody(t, w)["message"]; got != "Password changed successfully" {
		t.Errorf("message = %v, want %q", got, "Password changed successfully")
	}

	// Old password no longer works, new one does
	w = doRequest(t, router, http.MethodPost, "/auth/login", "",
		`{"username_or_email": "carol", "password": "old-password-123"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("old password login status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	loginAs(t, router, "carol", "new-password-456")
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	token := loginAs(t, router, "admin", testAdminPassword)

	body := `{"current_password": "wrong", "new_password": "new-password-456"}`
	w := doRequest(t, router, http.MethodPost, "/auth/change-password", token, body)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeBody(t, w)["error"]; got != "Current password is incorrect" {
		t.Errorf("error = %v, want %q", got, "Current password is incorrect")
	}
}

func TestChangePassword_MissingFields(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	token := loginAs(t, router, "admin", testAdminPassword)

	w := doRequest(t, router, http.MethodPost, "/auth/change-password", token, `{"new_password": "x-123456"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeBody(t, w)["error"]; got != "Current password and new password are required" {
		t.Errorf("error = %v, want %q", got, "Current password and new password are required")
	}
}

// ─── Password Reset Tests ──────────────────────────────────────────

func TestForgotPassword_UniformResponse(t *testing.T) {
	srv, sender := testServer(t)
	router := srv.buildRouter()

	const wantMsg = "If the email exists, a reset token has been generated"

	// Unknown email: 200, no token issued
	w := doRequest(t, router, http.MethodPost, "/auth/forgot-password", "", `{"email": "ghost@example.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("unknown email status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := decodeBody(t, w)["message"]; got != wantMsg {
		t.Errorf("message = %v, want %q", got, wantMsg)
	}
	if sender.token != "" {
		t.Error("no token should be issued for an unknown email")
	}

	// Known email: identical response, token delivered out of band
	w = doRequest(t, router, http.MethodPost, "/auth/forgot-password", "", `{"email": "admin@gatehouse.local"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("known email status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := decodeBody(t, w)["message"]; got != wantMsg {
		t.Errorf("message = %v, want %q", got, wantMsg)
	}
	if sender.token == "" {
		t.Error("expected a reset token for a known email")
	}
	if sender.email != "admin@gatehouse.local" {
		t.Errorf("sender email = %q, want admin@gatehouse.local", sender.email)
	}
}

func TestForgotPassword_MissingEmail(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := doRequest(t, router, http.MethodPost, "/auth/forgot-password", "", `{}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeBody(t, w)["error"]; got != "Email is required" {
		t.Errorf("error = %v, want %q", got, "Email is required")
	}
}

func TestResetPassword_Flow(t *testing.T) {
	srv, sender := testServer(t)
	router := srv.buildRouter()

	registerUser(t, router, "dave", "old-password-123")

	w := doRequest(t, router, http.MethodPost, "/auth/forgot-password", "", `{"email": "dave@example.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("forgot-password status = %d; body: %s", w.Code, w.Body.String())
	}
	if sender.token == "" {
		t.Fatal("expected a reset token to be issued")
	}

	body := fmt.Sprintf(`{"token": %q, "new_password": "fresh-password-789"}`, sender.token)
	w = doRequest(t, router, http.MethodPost, "/auth/reset-password", "", body)
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if got := decodeBody(t, w)["message"]; got != "Password reset successfully" {
		t.Errorf("message = %v, want %q", got, "Password reset successfully")
	}

	// New password works; the token is single-use
	loginAs(t, router, "dave", "fresh-password-789")

	w = doRequest(t, router, http.MethodPost, "/auth/reset-password", "", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("token reuse status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestResetPassword_InvalidToken(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"token": "bogus-token", "new_password": "fresh-password-789"}`
	w := doRequest(t, router, http.MethodPost, "/auth/reset-password", "", body)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeBody(t, w)["error"]; got != "Invalid or expired token" {
		t.Errorf("error = %v, want %q", got, "Invalid or expired token")
	}
}

func TestResetPassword_MissingFields(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := doRequest(t, router, http.MethodPost, "/auth/reset-password", "", `{"token": "abc"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeBody(t, w)["error"]; got != "Token and new password are required" {
		t.Errorf("error = %v, want %q", got, "Token and new password are required")
	}
}
