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
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAuthSecret = "test-secret-key"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken_Valid(t *testing.T) {
	tokenString := signToken(t, testAuthSecret, jwt.MapClaims{
		"client_id": "demo-client",
		"email":     "ops@demo.example",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	claims, err := validateToken(tokenString, testAuthSecret)
	require.NoError(t, err)
	assert.Equal(t, "demo-client", claims.ClientID)
	assert.Equal(t, "ops@demo.example", claims.Email)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	tokenString := signToken(t, "other-secret", jwt.MapClaims{
		"client_id": "demo-client",
	})

	_, err := validateToken(tokenString, testAuthSecret)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	tokenString := signToken(t, testAuthSecret, jwt.MapClaims{
		"client_id": "demo-client",
		"exp":       time.Now().Add(-time.Hour).Unix(),
	})

	_, err := validateToken(tokenString, testAuthSecret)
	assert.Error(t, err)
}

func TestValidateToken_MissingClientID(t *testing.T) {
	tokenString := signToken(t, testAuthSecret, jwt.MapClaims{
		"email": "ops@demo.example",
	})

	_, err := validateToken(tokenString, testAuthSecret)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_id")
}

func TestValidateToken_WrongAlgorithm(t *testing.T) {
	// alg=none tokens must be rejected
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"client_id": "demo-client",
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = validateToken(tokenString, testAuthSecret)
	assert.Error(t, err)
}

func TestValidateToken_Empty(t *testing.T) {
	_, err := validateToken("", testAuthSecret)
	assert.Error(t, err)
}

func TestClientIDFromRequest_NoSecret(t *testing.T) {
	r, _ := http.NewRequest("POST", "/api/v1/orchestrate", nil)

	clientID, err := clientIDFromRequest(r, "")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", clientID)

	r.Header.Set("X-Client-ID", "demo-client")
	clientID, err = clientIDFromRequest(r, "")
	require.NoError(t, err)
	assert.Equal(t, "demo-client", clientID)
}

func TestClientIDFromRequest_WithSecret(t *testing.T) {
	tokenString := signToken(t, testAuthSecret, jwt.MapClaims{
		"client_id": "demo-client",
	})

	r, _ := http.NewRequest("POST", "/api/v1/orchestrate", nil)
	r.Header.Set("Authorization", "Bearer "+tokenString)

	clientID, err := clientIDFromRequest(r, testAuthSecret)
	require.NoError(t, err)
	assert.Equal(t, "demo-client", clientID)
}

func TestClientIDFromRequest_MissingBearer(t *testing.T) {
	r, _ := http.NewRequest("POST", "/api/v1/orchestrate", nil)

	_, err := clientIDFromRequest(r, testAuthSecret)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bearer")

	// X-Client-ID is not trusted once auth is enabled
	r.Header.Set("X-Client-ID", "demo-client")
	_, err = clientIDFromRequest(r, testAuthSecret)
	assert.Error(t, err)
}
