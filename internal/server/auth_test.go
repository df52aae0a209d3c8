package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohammad-safakhou/copydesk/internal/runtime"
	"github.com/mohammad-safakhou/copydesk/internal/store"
)

func authContext(e *echo.Echo, body string, rec *httptest.ResponseRecorder) echo.Context {
	req := httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return e.NewContext(req, rec)
}

func TestSignupCreatesUser(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	handler := &AuthHandler{Store: &store.Store{DB: db}, Secret: []byte("secret")}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("a@example.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := httptest.NewRecorder()
	ctx := authContext(e, `{"email":"a@example.com","password":"longenough"}`, rec)
	if err := handler.signup(ctx); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	e := echo.New()
	handler := &AuthHandler{Secret: []byte("secret")}

	rec := httptest.NewRecorder()
	ctx := authContext(e, `{"email":"a@example.com","password":"short"}`, rec)
	err := handler.signup(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("signup error = %v, want 400", err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	handler := &AuthHandler{Store: &store.Store{DB: db}, Secret: []byte("secret")}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("a@example.com", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	rec := httptest.NewRecorder()
	ctx := authContext(e, `{"email":"a@example.com","password":"longenough"}`, rec)
	err = handler.signup(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("signup error = %v, want 409", err)
	}
}

func TestLoginIssuesToken(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	secret := []byte("secret")
	handler := &AuthHandler{Store: &store.Store{DB: db}, Secret: secret}

	hash, err := bcrypt.GenerateFromPassword([]byte("longenough"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	mock.ExpectQuery(`SELECT id, password_hash FROM users WHERE email=\$1`).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("user-1", string(hash)))

	rec := httptest.NewRecorder()
	ctx := authContext(e, `{"email":"a@example.com","password":"longenough"}`, rec)
	if err := handler.login(ctx); err != nil {
		t.Fatalf("login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token")
	}

	// The issued token passes the auth middleware.
	mw := runtime.EchoAuthMiddleware(secret)
	protected := mw(func(c echo.Context) error {
		if c.Get("user_id") != "user-1" {
			t.Fatalf("user_id = %v, want user-1", c.Get("user_id"))
		}
		if sub, ok := runtime.SubjectFromContext(c.Request().Context()); !ok || sub != "user-1" {
			t.Fatalf("subject = %q, %v, want user-1", sub, ok)
		}
		return c.NoContent(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec2 := httptest.NewRecorder()
	if err := protected(e.NewContext(req, rec2)); err != nil {
		t.Fatalf("auth middleware rejected issued token: %v", err)
	}

	cookies := rec.Result().Cookies()
	found := false
	for _, ck := range cookies {
		if ck.Name == "auth" && ck.Value == resp.Token {
			found = true
		}
	}
	if !found {
		t.Fatalf("login did not set the auth cookie")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	handler := &AuthHandler{Store: &store.Store{DB: db}, Secret: []byte("secret")}

	hash, _ := bcrypt.GenerateFromPassword([]byte("rightpassword"), bcrypt.MinCost)
	mock.ExpectQuery(`SELECT id, password_hash FROM users WHERE email=\$1`).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("user-1", string(hash)))

	rec := httptest.NewRecorder()
	ctx := authContext(e, `{"email":"a@example.com","password":"wrongpassword"}`, rec)
	err = handler.login(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("login error = %v, want 401", err)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	e := echo.New()
	mw := runtime.EchoAuthMiddleware([]byte("secret"))
	protected := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	err := protected(e.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("middleware error = %v, want 401", err)
	}
}
