package db

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionParams_ConnString(t *testing.T) {
	tests := []struct {
		name     string
		params   ConnectionParams
		password string
	}{
		{
			name:     "plain password",
			params:   ConnectionParams{Host: "localhost", Port: 5432, User: "solar", Password: "secret", DBName: "solar", SSLMode: "disable"},
			password: "secret",
		},
		{
			name:     "password with space",
			params:   ConnectionParams{Host: "localhost", Port: 5432, User: "solar", Password: "se cret", DBName: "solar", SSLMode: "disable"},
			password: "se cret",
		},
		{
			name:     "password with reserved characters",
			params:   ConnectionParams{Host: "db.internal", Port: 6543, User: "solar", Password: `p@ss:w/rd?#'"=`, DBName: "solar", SSLMode: "disable"},
			password: `p@ss:w/rd?#'"=`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := pgconn.ParseConfig(tt.params.ConnString())
			require.NoError(t, err)

			assert.Equal(t, tt.params.Host, cfg.Host)
			assert.Equal(t, uint16(tt.params.Port), cfg.Port)
			assert.Equal(t, tt.params.User, cfg.User)
			assert.Equal(t, tt.password, cfg.Password)
			assert.Equal(t, tt.params.DBName, cfg.Database)
			assert.Nil(t, cfg.TLSConfig)
		})
	}
}
