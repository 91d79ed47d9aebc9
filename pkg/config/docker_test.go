package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveHost(t *testing.T) {
	// These hosts are never modified
	for _, host := range []string{"ledger.example.com", "192.168.1.100", "host.docker.internal"} {
		assert.Equal(t, host, resolveHost(host))
	}
	for _, host := range []string{"localhost", "127.0.0.1"} {
		assert.Equal(t, "host.docker.internal", resolveHost(host))
	}
}

func TestResolveLedgerDSN(t *testing.T) {
	dsn := "postgres://ingest:pw@localhost:5432/ledger"
	if IsRunningInDocker() {
		assert.Equal(t, "postgres://ingest:pw@host.docker.internal:5432/ledger", ResolveLedgerDSN(dsn))
	} else {
		assert.Equal(t, dsn, ResolveLedgerDSN(dsn))
	}
}

func TestRewriteDSNHost(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"localhost with port", "postgres://ingest:pw@localhost:5432/ledger?sslmode=disable", "postgres://ingest:pw@host.docker.internal:5432/ledger?sslmode=disable"},
		{"loopback without port", "postgresql://127.0.0.1/ledger", "postgresql://host.docker.internal/ledger"},
		{"remote host", "postgres://db.internal:5432/ledger", "postgres://db.internal:5432/ledger"},
		{"keyword dsn", "host=localhost dbname=ledger", "host=localhost dbname=ledger"},
		{"sqlite path", "ingest_ledger.db", "ingest_ledger.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rewriteDSNHost(tt.dsn))
		})
	}
}
