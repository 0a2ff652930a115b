//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/api-client/internal/dbtest/postgrestest"
	"github.com/openkcm/api-client/internal/dbtest/valkeytest"
)

const commandTimeout = 30 * time.Second

const configTemplate = `application:
  name: api-client
logger:
  level: error
  format: text
storage:
%s
provider:
  authorizationEndpoint: https://idp.example/authorize
  responseType: token
  scope: openid
  verifyIDToken: false
session:
  requestTTL: 10m
`

type closeFunc func(ctx context.Context)

type infraStat struct {
	ConfigFilePath string
	Procdir        string
	Binary         string

	closeFuncs []closeFunc
}

func initInfra(t *testing.T, name string) (istat infraStat) {
	t.Helper()

	// The config is read from $PWD/config.yaml, so every test runs the
	// process in its own directory.
	wd, err := os.Getwd()
	require.NoError(t, err, "failed to get wd")
	istat.Binary = filepath.Join(wd, binary)
	istat.Procdir = filepath.Join(wd, name+"-test")
	istat.ConfigFilePath = filepath.Join(istat.Procdir, "config.yaml")

	err = os.MkdirAll(istat.Procdir, fs.ModePerm)
	require.NoError(t, err, "failed to create a dir for the process")

	return istat
}

// PreparePostgres starts a migrated database and returns its storage section.
func (istat *infraStat) PreparePostgres(t *testing.T) string {
	t.Helper()

	pgClient, pgPort, pgTerminate := postgrestest.Start(t.Context())
	pgClient.Close()

	istat.closeFuncs = append(istat.closeFuncs, pgTerminate)

	return postgresStorage(pgPort)
}

func postgresStorage(port nat.Port) string {
	return fmt.Sprintf(`  type: postgres
  database:
    name: %s
    port: "%s"
    host:
      source: embedded
      value: %s
    user:
      source: embedded
      value: %s
    password:
      source: embedded
      value: %s`, postgrestest.DBName, port.Port(), postgrestest.DBHost, postgrestest.DBUser, postgrestest.DBPassword)
}

// PrepareValKey starts a Valkey server and returns its storage section.
func (istat *infraStat) PrepareValKey(t *testing.T) string {
	t.Helper()

	vkClient, vkPort, vkTerminate := valkeytest.Start(t.Context())
	vkClient.Close()

	istat.closeFuncs = append(istat.closeFuncs, vkTerminate)

	return fmt.Sprintf(`  type: valkey
  valkey:
    host:
      source: embedded
      value: %s
    user:
      source: embedded
      value: ""
    password:
      source: embedded
      value: ""
    prefix: api-client-test`, net.JoinHostPort("localhost", vkPort.Port()))
}

func (istat *infraStat) PrepareFile(t *testing.T) string {
	t.Helper()

	return fmt.Sprintf("  type: file\n  file:\n    dir: %s", filepath.Join(istat.Procdir, "state"))
}

// PrepareConfig writes the config file with the given storage section.
func (istat *infraStat) PrepareConfig(t *testing.T, storage string) {
	t.Helper()

	err := os.WriteFile(istat.ConfigFilePath, fmt.Appendf(nil, configTemplate, storage), 0o600)
	require.NoError(t, err, "failed to write config file")
}

// Run executes the binary in the process directory and returns its stdout.
func (istat *infraStat) Run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, istat.Binary, args...)
	cmd.Dir = istat.Procdir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		t.Logf("%v failed, stderr: %s", args, stderr.String())
	}

	return stdout.String(), err
}

func (istat *infraStat) Close(ctx context.Context) {
	os.RemoveAll(istat.Procdir)

	for _, close := range istat.closeFuncs {
		close(ctx)
	}
}
