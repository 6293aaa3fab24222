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


package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/opentrusty/tenantdir/internal/audit"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// Authenticator verifies HMAC-signed bearer tokens and exposes their claims
// to the tenant resolver.
type Authenticator struct {
	secret   []byte
	issuer   string
	disabled bool
}

// NewAuthenticator creates an authenticator. When disabled, requests without
// a token pass with no claims; a presented token is still verified.
func NewAuthenticator(secret, issuer string, disabled bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, disabled: disabled}
}

var errMissingToken = errors.New("missing bearer token")

// Parse verifies raw and returns its claims.
func (a *Authenticator) Parse(raw string) (tenant.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	return tenant.Claims(claims), nil
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("malformed authorization header")
	}
	return strings.TrimSpace(token), nil
}

// Middleware authenticates the request and stores claims and subject in its
// context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if errors.Is(err, errMissingToken) && a.disabled {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.Parse(raw)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		if sub, _ := claims["sub"].(string); sub != "" {
			ctx = context.WithValue(ctx, subjectKey, sub)
			ctx = audit.WithActor(ctx, sub)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
