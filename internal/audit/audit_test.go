// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that sensitive keys are correctly identified as secrets to prevent them from being logged in plaintext.
// Scope: Unit Test
// Security: Data Masking and Leakage Prevention (CWE-532)
// Expected: Returns true for keys containing 'password', 'token', 'secret', etc., and false for non-sensitive keys.
// Test Case ID: AUD-01
func TestAudit_IsSecret(t *testing.T) {
	tests := []struct {
		key      string
		isSecret bool
	}{
		{"password", true},
		{"Password", true},
		{"PASSWORD", true},
		{"token", true},
		{"access_token", true},
		{"secret", true},
		{"api_key", true},
		{"password_hash", true},
		{"credential", true},
		{"user_id", false},
		{"tenant_id", false},
		{"role_id", false},
		{"permission", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.isSecret, isSecret(tt.key))
		})
	}
}

// TestPurpose: Validates that audit events carry the actor from the request context and redact secrets.
// Scope: Unit Test
// Security: Accountability of authorization graph mutations
// Expected: The emitted record holds the context actor, the tenant and a redacted secret.
// Test Case ID: AUD-02
func TestAudit_SlogLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLoggerWith(slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx := WithActor(context.Background(), "user-1")
	l.Log(ctx, Event{
		Type:     TypePermissionGranted,
		TenantID: "tenant-1",
		Resource: "role-1",
		Metadata: map[string]any{"permission_id": "perm-1", "api_key": "abc"},
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "AUDIT_EVENT", rec["msg"])
	assert.Equal(t, TypePermissionGranted, rec["audit_type"])
	assert.Equal(t, "user-1", rec["actor_id"])
	assert.Equal(t, "tenant-1", rec["tenant_id"])
	md := rec["metadata"].(map[string]any)
	assert.Equal(t, "perm-1", md["permission_id"])
	assert.Equal(t, "[REDACTED]", md["api_key"])
}
