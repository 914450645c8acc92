package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/gochat/pkg/datastore"
	"github.com/NicolasHaas/gochat/pkg/model"
)

func TestExportUsersYAML(t *testing.T) {
	st, err := datastore.NewProviderFactory(filepath.Join(t.TempDir(), "export.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"bob", "alice"} {
		require.NoError(t, st.NonTx().CreateUser(ctx, &model.User{
			ID:           id,
			Username:     id + "-name",
			PasswordHash: []byte("secret-hash"),
			Salt:         []byte("salt"),
			CreatedAt:    created,
		}))
	}
	login := created.Add(time.Hour)
	require.NoError(t, st.NonTx().TouchLogin(ctx, "alice", login))

	data, err := ExportUsersYAML(ctx, st.NonTx())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-hash")

	var got UsersExport
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, UsersExport{Users: []UserYAML{
		{ID: "alice", Username: "alice-name", CreatedAt: "2024-03-01T12:00:00Z", LastLoginAt: "2024-03-01T13:00:00Z"},
		{ID: "bob", Username: "bob-name", CreatedAt: "2024-03-01T12:00:00Z"},
	}}, got)
}
