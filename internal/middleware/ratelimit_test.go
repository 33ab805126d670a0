// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("test-ip") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	if rl.Allow("test-ip") {
		t.Error("4th request should be rate-limited")
	}

	if !rl.Allow("other-ip") {
		t.Error("different key should be allowed")
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(PerWindow(1, 50*time.Millisecond), 1)
	defer rl.Stop()

	if !rl.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("k") {
		t.Error("should be rate-limited")
	}

	time.Sleep(80 * time.Millisecond)

	if !rl.Allow("k") {
		t.Error("should be allowed after the bucket refills")
	}
}

func TestPerWindow(t *testing.T) {
	if got, want := PerWindow(10, time.Minute), rate.Every(6*time.Second); got != want {
		t.Errorf("PerWindow: got %v, want %v", got, want)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(rate.Inf, 1)
	defer rl.Stop()

	rl.Allow("a")
	rl.Allow("b")
	if rl.Len() != 2 {
		t.Fatalf("Len: got %d", rl.Len())
	}

	rl.cleanup(time.Now())
	if rl.Len() != 2 {
		t.Error("recent entries must survive cleanup")
	}

	rl.cleanup(time.Now().Add(time.Hour))
	if rl.Len() != 0 {
		t.Errorf("idle entries should be dropped, %d left", rl.Len())
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2)
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d, want 200", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("got status %d, want 429", rr.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded chain", "203.0.113.7, 10.0.0.1", "", "10.0.0.2:80", "203.0.113.7"},
		{"single forwarded", "203.0.113.8", "", "10.0.0.2:80", "203.0.113.8"},
		{"real ip", "", "198.51.100.4", "10.0.0.2:80", "198.51.100.4"},
		{"remote addr", "", "", "192.0.2.1:5555", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP: got %q, want %q", got, tt.want)
			}
		})
	}
}
