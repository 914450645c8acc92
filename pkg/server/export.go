package server

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/gochat/pkg/datastore"
)

// UserYAML represents a user in YAML export.
type UserYAML struct {
	ID          string `yaml:"id"`
	Username    string `yaml:"username"`
	CreatedAt   string `yaml:"created_at"`
	LastLoginAt string `yaml:"last_login_at,omitempty"`
}

// UsersExport is the top-level YAML for user export.
type UsersExport struct {
	Users []UserYAML `yaml:"users"`
}

// ExportUsersYAML exports all users as YAML. Credentials are never included.
func ExportUsersYAML(ctx context.Context, st datastore.DataStore) ([]byte, error) {
	users, err := st.ListUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "server: export users")
	}

	export := UsersExport{Users: make([]UserYAML, 0, len(users))}
	for _, u := range users {
		entry := UserYAML{
			ID:        u.ID,
			Username:  u.Username,
			CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
		}
		if !u.LastLoginAt.IsZero() {
			entry.LastLoginAt = u.LastLoginAt.UTC().Format(time.RFC3339)
		}
		export.Users = append(export.Users, entry)
	}
	return yaml.Marshal(&export)
}
