package clouddriver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuemby/swarmd/pkg/swarmerr"
	"github.com/cuemby/swarmd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T, handler http.HandlerFunc) (*Driver, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	d := New(Config{
		BaseURL: srv.URL,
		Token:   "test-token",
		Backoff: BackoffConfig{MaxRetries: 1},
	})
	return d, srv
}

func TestCreate_Success(t *testing.T) {
	d, srv := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/apps":
			json.NewEncoder(w).Encode(applicationResponse{ID: "app-1", Name: "swarmd-dev-1"})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/apps/app-1/machines":
			json.NewEncoder(w).Encode(machineResponse{ID: "m-1", Name: "dev-1", State: "started", PrivateIP: "10.0.0.5"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	defer srv.Close()

	inst, err := d.Create(t.Context(), "dev-1", types.Spec{
		Image:         "swarmd/workspace:latest",
		WorkspacePath: "/home/dev",
		Resources:     types.ResourceRequest{CPUCores: 1, MemoryMiB: 1024},
		Network:       types.NetworkRequest{Port: 8080},
	})
	require.NoError(t, err)
	assert.Equal(t, "app-1/m-1", inst.ProviderInstanceID)
	assert.Equal(t, types.InstanceStatusRunning, inst.Status)
	assert.Equal(t, "10.0.0.5", inst.Network.InternalIP)
}

func TestCreate_ApplicationConflictTolerated(t *testing.T) {
	d, srv := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/apps":
			w.WriteHeader(http.StatusConflict)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/apps/swarmd-dev-2":
			json.NewEncoder(w).Encode(applicationResponse{ID: "app-2", Name: "swarmd-dev-2"})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/apps/app-2/machines":
			json.NewEncoder(w).Encode(machineResponse{ID: "m-2", State: "created"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	defer srv.Close()

	inst, err := d.Create(t.Context(), "dev-2", types.Spec{
		Image:     "swarmd/workspace:latest",
		WorkspacePath: "/home/dev",
		Resources: types.ResourceRequest{CPUCores: 1, MemoryMiB: 1024},
		Network:   types.NetworkRequest{Port: 8080},
	})
	require.NoError(t, err)
	assert.Equal(t, types.InstanceStatusStopped, inst.Status)
}

func TestGet_NotFound(t *testing.T) {
	d, srv := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	inst, err := d.Get(t.Context(), "app-1/missing")
	assert.NoError(t, err)
	assert.Nil(t, inst)
}

func TestGet_MalformedProviderID(t *testing.T) {
	d, srv := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach the server for a malformed id")
	})
	defer srv.Close()

	_, err := d.Get(t.Context(), "no-slash-here")
	assert.True(t, swarmerr.Is(err, swarmerr.InvalidArgKind))
}

func TestStatusToErr(t *testing.T) {
	tests := []struct {
		status int
		kind   swarmerr.Kind
	}{
		{http.StatusUnauthorized, swarmerr.AuthKind},
		{http.StatusNotFound, swarmerr.NotFoundKind},
		{http.StatusTooManyRequests, swarmerr.RateLimitedKind},
		{http.StatusInternalServerError, swarmerr.InternalKind},
		{http.StatusBadRequest, swarmerr.ApiRequestKind},
	}
	for _, tt := range tests {
		err := statusToErr(tt.status, nil)
		require.NotNil(t, err)
		assert.Equal(t, tt.kind, err.Kind)
	}

	assert.Nil(t, statusToErr(http.StatusOK, nil))
}

func TestMachineState(t *testing.T) {
	assert.Equal(t, types.InstanceStatusRunning, machineState("started"))
	assert.Equal(t, types.InstanceStatusStopped, machineState("stopped"))
	assert.Equal(t, types.InstanceStatusCreating, machineState("starting"))
	assert.Equal(t, types.InstanceStatusDeleted, machineState("destroyed"))
	assert.Equal(t, types.InstanceStatusFailed, machineState("bogus"))
}
