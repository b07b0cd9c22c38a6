package envelope

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/platform/apperror"
)

func serve(t *testing.T, err error) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	e.HTTPErrorHandler(err, c)

	var body Response
	if decodeErr := json.Unmarshal(rec.Body.Bytes(), &body); decodeErr != nil {
		t.Fatalf("decode response: %v", decodeErr)
	}
	return rec, body
}

func TestErrorHandler_Validation(t *testing.T) {
	rec, body := serve(t, apperror.Validation(apperror.Violation{
		Field: "mask_type", Code: "not_allowed", Message: "only valid for Ventilation or CPAP",
	}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if body.Success {
		t.Error("expected success=false")
	}
	if len(body.Details) != 1 || body.Details[0].Field != "mask_type" {
		t.Errorf("expected field-level details, got %+v", body.Details)
	}
}

func TestErrorHandler_InternalHidesCause(t *testing.T) {
	rec, body := serve(t, errors.New("pq: relation does not exist"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "relation") {
		t.Errorf("internal detail leaked: %s", rec.Body.String())
	}
	if body.Message != "internal server error" {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestErrorHandler_EchoHTTPError(t *testing.T) {
	rec, body := serve(t, echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body.Message != "missing authorization header" {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestOK(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := OK(c, http.StatusCreated, map[string]string{"id": "1"}, "created"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Errorf("expected success=true in %s", rec.Body.String())
	}
}
