package config

import (
	"net"
	"net/url"
	"os"
	"sync"
)

// dockerHostAlias reaches the Docker host from inside a container.
const dockerHostAlias = "host.docker.internal"

var (
	dockerEnvPath  = "/.dockerenv"
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker returns true if ingest itself runs inside a Docker container.
// The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat(dockerEnvPath)
		isDockerResult = err == nil
	})
	return isDockerResult
}

// resolveHost maps loopback hosts to host.docker.internal.
func resolveHost(host string) string {
	if host == "localhost" || host == "127.0.0.1" {
		return dockerHostAlias
	}
	return host
}

// ResolveLedgerDSN rewrites a postgres:// ledger DSN that points at localhost
// so a containerized ingest reaches a database published on the host.
// Keyword/value DSNs and sqlite paths are returned unchanged.
func ResolveLedgerDSN(dsn string) string {
	if !IsRunningInDocker() {
		return dsn
	}
	return rewriteDSNHost(dsn)
}

func rewriteDSNHost(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return dsn
	}

	host := resolveHost(u.Hostname())
	if host == u.Hostname() {
		return dsn
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	return u.String()
}
