// Copyright 2025 AdMesh
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

package orchestrator

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims carries the caller identity extracted from a bearer token
type AuthClaims struct {
	ClientID string
	Email    string
}

// validateToken parses and verifies an HS256 bearer token and extracts the
// caller identity from its claims.
func validateToken(tokenString, secret string) (*AuthClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token required")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	clientID := getClaimString(claims, "client_id")
	if clientID == "" {
		return nil, fmt.Errorf("token missing client_id claim")
	}

	return &AuthClaims{
		ClientID: clientID,
		Email:    getClaimString(claims, "email"),
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return value
	}
	return ""
}

// clientIDFromRequest resolves the calling client's identity.
//
// With an auth secret configured the request must carry a valid bearer
// token; without one the X-Client-ID header is trusted, falling back to
// "anonymous". The returned id feeds rate limiting and log correlation.
func clientIDFromRequest(r *http.Request, authSecret string) (string, error) {
	if authSecret == "" {
		if clientID := r.Header.Get("X-Client-ID"); clientID != "" {
			return clientID, nil
		}
		return "anonymous", nil
	}

	authHeader := r.Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return "", fmt.Errorf("missing bearer token")
	}

	claims, err := validateToken(tokenString, authSecret)
	if err != nil {
		return "", err
	}
	return claims.ClientID, nil
}
