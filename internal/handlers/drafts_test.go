// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"pitchdeck/internal/drafts"
)

func TestDraftsWizardRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()
	cookie := env.login(t, owner)

	if rr := env.do(t, cookie, http.MethodGet, "/api/drafts/wizard", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("empty draft: got %d", rr.Code)
	}

	doc := `{"companyName":"Acme","step":2}`
	if rr := env.do(t, cookie, http.MethodPut, "/api/drafts/wizard", doc); rr.Code != http.StatusNoContent {
		t.Fatalf("put: got %d: %s", rr.Code, rr.Body.String())
	}
	if !env.mr.Exists(drafts.WizardKey(owner)) {
		t.Error("draft not stored under the owner's wizard key")
	}

	rr := env.do(t, cookie, http.MethodGet, "/api/drafts/wizard", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != doc {
		t.Errorf("get: %d %q", rr.Code, rr.Body.String())
	}

	if rr := env.do(t, cookie, http.MethodDelete, "/api/drafts/wizard", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rr.Code)
	}
	if env.mr.Exists(drafts.WizardKey(owner)) {
		t.Error("draft still stored after delete")
	}
}

func TestDraftsJobs(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()
	cookie := env.login(t, owner)

	if rr := env.do(t, cookie, http.MethodPut, "/api/drafts/jobs/job-42", `{"coverLetter":"Hi"}`); rr.Code != http.StatusNoContent {
		t.Fatalf("put: got %d", rr.Code)
	}
	if !env.mr.Exists(drafts.JobKey(owner, "job-42")) {
		t.Error("job draft not stored")
	}

	// Drafts are private to their owner.
	other := env.login(t, uuid.New())
	if rr := env.do(t, other, http.MethodGet, "/api/drafts/jobs/job-42", nil); rr.Code != http.StatusNoContent {
		t.Errorf("other owner: got %d, want 204", rr.Code)
	}
}

func TestDraftsRejected(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, uuid.New())

	tests := []struct {
		name string
		path string
		body string
	}{
		{"not an object", "/api/drafts/wizard", `[1,2]`},
		{"invalid json", "/api/drafts/wizard", `{"a":`},
		{"too large", "/api/drafts/wizard", `{"a":"` + strings.Repeat("x", drafts.MaxSize) + `"}`},
		{"bad job id", "/api/drafts/jobs/a:b", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := env.do(t, cookie, http.MethodPut, tt.path, tt.body); rr.Code != http.StatusUnprocessableEntity {
				t.Errorf("status: got %d, want 422", rr.Code)
			}
		})
	}
}
