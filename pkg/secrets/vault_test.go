package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/localservices/pkg/retry"
)

func testVaultConfig(addr string) VaultConfig {
	return VaultConfig{
		Enabled:   true,
		Addr:      addr,
		Token:     "test-token",
		Mount:     "secret",
		Path:      "localservices/api",
		KVVersion: 2,
		Timeout:   time.Second,
		Retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
		},
	}
}

func TestApplyVaultSecrets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/secret/data/localservices/api", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		w.Write([]byte(`{"data":{"data":{"LS_TEST_DB_PASSWORD":"s3cret","LS_TEST_DB_PORT":5432,"LS_TEST_PRESET":"vault"}}}`))
	}))
	defer server.Close()

	t.Setenv("LS_TEST_DB_PASSWORD", "")
	t.Setenv("LS_TEST_DB_PORT", "")
	t.Setenv("LS_TEST_PRESET", "local")

	result, err := ApplyVaultSecrets(context.Background(), testVaultConfig(server.URL))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Loaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "s3cret", os.Getenv("LS_TEST_DB_PASSWORD"))
	assert.Equal(t, "5432", os.Getenv("LS_TEST_DB_PORT"))
	assert.Equal(t, "local", os.Getenv("LS_TEST_PRESET"))
}

func TestApplyVaultSecrets_Disabled(t *testing.T) {
	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{})
	require.NoError(t, err)
	assert.False(t, result.Enabled)
}

func TestApplyVaultSecrets_Incomplete(t *testing.T) {
	cfg := testVaultConfig("")
	_, err := ApplyVaultSecrets(context.Background(), cfg)
	assert.Error(t, err)
}

func TestApplyVaultSecrets_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":{"data":{"LS_TEST_RETRIED":"yes"}}}`))
	}))
	defer server.Close()
	t.Setenv("LS_TEST_RETRIED", "")

	result, err := ApplyVaultSecrets(context.Background(), testVaultConfig(server.URL))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Loaded)
	assert.Equal(t, int32(2), calls.Load())
}

func TestApplyVaultSecrets_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "permission denied", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := ApplyVaultSecrets(context.Background(), testVaultConfig(server.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestBuildVaultURL(t *testing.T) {
	url, err := buildVaultURL("http://vault:8200/", "/secret/", "/app", 1)
	require.NoError(t, err)
	assert.Equal(t, "http://vault:8200/v1/secret/app", url)

	url, err = buildVaultURL("http://vault:8200", "secret", "app", 2)
	require.NoError(t, err)
	assert.Equal(t, "http://vault:8200/v1/secret/data/app", url)

	_, err = buildVaultURL("", "secret", "app", 2)
	assert.Error(t, err)
}
