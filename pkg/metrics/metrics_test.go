package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.Logins.Add(3)
	m.OnlineUsers.Store(2)
	m.WorkflowResult("friend_response_from_client", true)
	m.WorkflowResult("friend_response_from_client", false)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "gochat_logins_total 3")
	assert.Contains(t, text, "gochat_users_online 2")
	assert.Contains(t, text, `gochat_workflow_results_total{result="ok",type="friend_response_from_client"} 1`)
	assert.Contains(t, text, `gochat_workflow_results_total{result="failed",type="friend_response_from_client"} 1`)
	assert.True(t, strings.Contains(text, "gochat_uptime_seconds"))
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Logouts.Add(1)
	assert.Equal(t, int64(0), b.Logouts.Load())
	assert.NotSame(t, a.Registry(), b.Registry())
}
