package http

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		Body(map[string]int{"year": 2024}).
		Write(rec)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Fatalf("Content-Type = %q", got)
	}
	if rec.Header().Get("X-Test") != "1" {
		t.Fatal("custom header missing")
	}
	if got := rec.Body.String(); got != "{\"year\":2024}\n" {
		t.Fatalf("body = %q", got)
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(rec)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("status=%d body=%q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "" {
		t.Fatal("no content type expected without a body")
	}
}

func TestJSONResponseBuilder_EncodingFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusCreated).Body(math.Inf(1)).Write(rec)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		builder *JSONResponseBuilder
		status  int
		body    string
	}{
		{BadRequestError("bad"), 400, `{"statusCode":400,"error":"Bad Request","message":"bad"}`},
		{UnauthorizedError("who"), 401, `{"statusCode":401,"error":"Unauthorized","message":"who"}`},
		{ForbiddenError("over"), 403, `{"statusCode":403,"error":"Forbidden","message":"over"}`},
		{NotFoundError("gone"), 404, `{"statusCode":404,"error":"Not Found","message":"gone"}`},
		{ConflictError("again"), 409, `{"statusCode":409,"error":"Conflict","message":"again"}`},
		{InternalServerError(), 500, `{"statusCode":500,"error":"Internal Server Error","message":"Internal server error"}`},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		tt.builder.Write(rec)
		if rec.Code != tt.status {
			t.Errorf("status = %d, want %d", rec.Code, tt.status)
		}
		if got := rec.Body.String(); got != tt.body+"\n" {
			t.Errorf("body = %s, want %s", got, tt.body)
		}
	}

	rec := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(rec)
	if rec.Header().Get("Allow") != "GET, POST" || rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("405 response wrong: %d %q", rec.Code, rec.Header().Get("Allow"))
	}
}
