package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-api/internal/policy"
	"catalog-api/internal/token"
)

func newTestServer(t *testing.T) (*httptest.Server, *memStore, *Service) {
	t.Helper()

	codec, err := token.NewCodec(testSecret, "catalog-api", "catalog-clients", 15*time.Minute)
	require.NoError(t, err)
	store := newMemStore()
	service := NewService(store, codec, time.Hour)
	handler := NewHandler(service)

	registry := policy.NewRegistry()
	registry.Register("AdminOnly", policy.RequireRole("Admin"))
	registry.Register("SuperAdminOnly", policy.RequireRoleAndClaim("Admin", "id", "andre"))
	registry.Register("ExclusiveOnly", policy.Assertion("andre", "SuperAdmin"))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", handler.Login)
	mux.HandleFunc("POST /auth/refresh", handler.Refresh)
	mux.HandleFunc("POST /auth/register", handler.Register)
	mux.Handle("POST /auth/revoke/{username}", Middleware(codec, RequirePolicy(registry, "ExclusiveOnly", http.HandlerFunc(handler.Revoke))))
	mux.Handle("POST /auth/roles", Middleware(codec, RequirePolicy(registry, "SuperAdminOnly", http.HandlerFunc(handler.CreateRole))))
	mux.Handle("POST /auth/roles/members", Middleware(codec, RequirePolicy(registry, "SuperAdminOnly", http.HandlerFunc(handler.AddUserToRole))))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, store, service
}

func postJSON(t *testing.T, url, bearer string, body any) *http.Response {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func login(t *testing.T, server *httptest.Server, username, password string) LoginResult {
	t.Helper()
	resp := postJSON(t, server.URL+"/auth/login", "", loginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result LoginResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func TestLoginEndpoint(t *testing.T) {
	t.Parallel()
	server, store, _ := newTestServer(t)
	store.addUser(t, "bob", "bob@example.com", "s3cretpassw0rd", "Admin")

	result := login(t, server, "bob", "s3cretpassw0rd")
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.True(t, result.Expiration.After(time.Now().UTC()))
}

func TestLoginEndpoint_UniformUnauthorized(t *testing.T) {
	t.Parallel()
	server, store, _ := newTestServer(t)
	store.addUser(t, "bob", "bob@example.com", "s3cretpassw0rd")

	unknown := postJSON(t, server.URL+"/auth/login", "", loginRequest{Username: "ghost", Password: "whatever1234"})
	wrongPass := postJSON(t, server.URL+"/auth/login", "", loginRequest{Username: "bob", Password: "wrongpass123"})

	assert.Equal(t, http.StatusUnauthorized, unknown.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, wrongPass.StatusCode)

	// Response shapes must be indistinguishable: both bodies empty.
	var unknownBody, wrongPassBody bytes.Buffer
	_, _ = unknownBody.ReadFrom(unknown.Body)
	_, _ = wrongPassBody.ReadFrom(wrongPass.Body)
	assert.Empty(t, unknownBody.String())
	assert.Empty(t, wrongPassBody.String())
}

func TestRefreshEndpoint(t *testing.T) {
	t.Parallel()
	server, store, _ := newTestServer(t)
	store.addUser(t, "bob", "bob@example.com", "s3cretpassw0rd")

	result := login(t, server, "bob", "s3cretpassw0rd")

	resp := postJSON(t, server.URL+"/auth/refresh", "", refreshRequest{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rotated RefreshResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rotated))
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, result.RefreshToken, rotated.RefreshToken)

	// The superseded refresh token is dead.
	replay := postJSON(t, server.URL+"/auth/refresh", "", refreshRequest{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken})
	assert.Equal(t, http.StatusBadRequest, replay.StatusCode)
	assert.Equal(t, "Invalid access token/refresh token", errorMessage(t, replay))
}

func TestRefreshEndpoint_ClientErrors(t *testing.T) {
	t.Parallel()
	server, store, _ := newTestServer(t)
	store.addUser(t, "bob", "bob@example.com", "s3cretpassw0rd")
	result := login(t, server, "bob", "s3cretpassw0rd")

	missing := postJSON(t, server.URL+"/auth/refresh", "", refreshRequest{AccessToken: result.AccessToken})
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
	assert.Equal(t, "Invalid client request", errorMessage(t, missing))

	tampered := result.AccessToken[:len(result.AccessToken)-4] + "AAAA"
	bad := postJSON(t, server.URL+"/auth/refresh", "", refreshRequest{AccessToken: tampered, RefreshToken: result.RefreshToken})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.Equal(t, "Invalid access token/refresh token", errorMessage(t, bad))
}

func TestRevokeEndpoint(t *testing.T) {
	t.Parallel()
	server, store, service := newTestServer(t)
	store.addUser(t, "andre", "andre@example.com", "s3cretpassw0rd", "Admin")
	store.addUser(t, "bob", "bob@example.com", "s3cretpassw0rd", "Admin")

	andre := login(t, server, "andre", "s3cretpassw0rd")
	bob := login(t, server, "bob", "s3cretpassw0rd")

	// bob passes AdminOnly elsewhere but not the assertion policy here.
	denied := postJSON(t, server.URL+"/auth/revoke/bob", bob.AccessToken, struct{}{})
	assert.Equal(t, http.StatusForbidden, denied.StatusCode)

	missing := postJSON(t, server.URL+"/auth/revoke/bob", "", struct{}{})
	assert.Equal(t, http.StatusUnauthorized, missing.StatusCode)

	revoked := postJSON(t, server.URL+"/auth/revoke/bob", andre.AccessToken, struct{}{})
	assert.Equal(t, http.StatusNoContent, revoked.StatusCode)

	_, err := service.Refresh(context.Background(), bob.AccessToken, bob.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshMismatch)

	// Revoking again is fine; an unknown target is a client error.
	again := postJSON(t, server.URL+"/auth/revoke/bob", andre.AccessToken, struct{}{})
	assert.Equal(t, http.StatusNoContent, again.StatusCode)
	ghost := postJSON(t, server.URL+"/auth/revoke/ghost", andre.AccessToken, struct{}{})
	assert.Equal(t, http.StatusBadRequest, ghost.StatusCode)
}

func TestRegisterEndpoint(t *testing.T) {
	t.Parallel()
	server, _, _ := newTestServer(t)

	created := postJSON(t, server.URL+"/auth/register", "", registerRequest{Username: "carol", Email: "carol@example.com", Password: "s3cretpassw0rd"})
	require.Equal(t, http.StatusOK, created.StatusCode)
	body := responseBody(t, created)
	assert.Equal(t, "Success", body.Status)

	duplicate := postJSON(t, server.URL+"/auth/register", "", registerRequest{Username: "carol", Email: "carol@example.com", Password: "s3cretpassw0rd"})
	assert.Equal(t, http.StatusBadRequest, duplicate.StatusCode)
	body = responseBody(t, duplicate)
	assert.Equal(t, "Error", body.Status)
	assert.Equal(t, "User already exists", body.Message)
}

func TestRoleEndpoints(t *testing.T) {
	t.Parallel()
	server, store, _ := newTestServer(t)
	store.addUser(t, "andre", "andre@example.com", "s3cretpassw0rd", "Admin")
	store.addUser(t, "bob", "bob@example.com", "s3cretpassw0rd", "Admin")

	andre := login(t, server, "andre", "s3cretpassw0rd")
	bob := login(t, server, "bob", "s3cretpassw0rd")

	// SuperAdminOnly wants the Admin role AND the id claim; bob has only the role.
	denied := postJSON(t, server.URL+"/auth/roles", bob.AccessToken, createRoleRequest{Name: "Editor"})
	assert.Equal(t, http.StatusForbidden, denied.StatusCode)

	created := postJSON(t, server.URL+"/auth/roles", andre.AccessToken, createRoleRequest{Name: "Editor"})
	require.Equal(t, http.StatusOK, created.StatusCode)
	assert.Equal(t, "Success", responseBody(t, created).Status)

	duplicate := postJSON(t, server.URL+"/auth/roles", andre.AccessToken, createRoleRequest{Name: "Editor"})
	assert.Equal(t, http.StatusBadRequest, duplicate.StatusCode)
	assert.Equal(t, "Role already exists", responseBody(t, duplicate).Message)

	assigned := postJSON(t, server.URL+"/auth/roles/members", andre.AccessToken, addUserToRoleRequest{Email: "bob@example.com", RoleName: "Editor"})
	require.Equal(t, http.StatusOK, assigned.StatusCode)
	assert.Equal(t, fmt.Sprintf("User %s added to the %s role", "bob@example.com", "Editor"), responseBody(t, assigned).Message)

	ghost := postJSON(t, server.URL+"/auth/roles/members", andre.AccessToken, addUserToRoleRequest{Email: "ghost@example.com", RoleName: "Editor"})
	assert.Equal(t, http.StatusBadRequest, ghost.StatusCode)
	assert.Equal(t, "Unable to find user", responseBody(t, ghost).Message)
}

func TestMiddleware_RejectsBadTokens(t *testing.T) {
	t.Parallel()
	server, store, _ := newTestServer(t)
	store.addUser(t, "andre", "andre@example.com", "s3cretpassw0rd", "Admin")
	andre := login(t, server, "andre", "s3cretpassw0rd")

	garbage := postJSON(t, server.URL+"/auth/roles", "not-a-token", createRoleRequest{Name: "X"})
	assert.Equal(t, http.StatusUnauthorized, garbage.StatusCode)

	user, err := store.GetByUsername(context.Background(), "andre")
	require.NoError(t, err)
	expired := postJSON(t, server.URL+"/auth/roles", signExpiredAccessToken(t, user), createRoleRequest{Name: "X"})
	assert.Equal(t, http.StatusUnauthorized, expired.StatusCode)

	tampered := postJSON(t, server.URL+"/auth/roles", andre.AccessToken[:len(andre.AccessToken)-4]+"AAAA", createRoleRequest{Name: "X"})
	assert.Equal(t, http.StatusUnauthorized, tampered.StatusCode)
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body["error"]
}

func responseBody(t *testing.T, resp *http.Response) Response {
	t.Helper()
	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}
