package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"
)

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestDecodeAndValidateAcceptsValidBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/login",
		strings.NewReader(`{"email":"ann@example.com","password":"secret123"}`))

	var payload loginPayload
	if err := DecodeAndValidate(req, &payload); err != nil {
		t.Fatalf("Expected valid payload, got %v", err)
	}
	if payload.Email != "ann@example.com" {
		t.Errorf("Email not decoded: %q", payload.Email)
	}
}

func TestDecodeAndValidateRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/login", strings.NewReader(`{not json`))

	var payload loginPayload
	if err := DecodeAndValidate(req, &payload); err == nil {
		t.Fatal("Expected a decode error")
	}
}

func TestDecodeAndValidateReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/login",
		strings.NewReader(`{"email":"not-an-email","password":"short"}`))

	var payload loginPayload
	err := DecodeAndValidate(req, &payload)
	if err == nil {
		t.Fatal("Expected validation errors")
	}

	fieldErrors := FormatValidationErrors(err)
	if len(fieldErrors) != 2 {
		t.Fatalf("Expected 2 field errors, got %d: %v", len(fieldErrors), fieldErrors)
	}

	byField := make(map[string]string)
	for _, fe := range fieldErrors {
		byField[fe.Field] = fe.Message
	}
	if byField["Email"] != "Invalid email format" {
		t.Errorf("Email message = %q", byField["Email"])
	}
	if byField["Password"] != "Value is too short" {
		t.Errorf("Password message = %q", byField["Password"])
	}
}

func TestFormatValidationErrorsIgnoresOtherErrors(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/login", strings.NewReader(`{not json`))

	var payload loginPayload
	err := DecodeAndValidate(req, &payload)
	if got := FormatValidationErrors(err); len(got) != 0 {
		t.Errorf("Decode errors should not produce field errors, got %v", got)
	}
}
