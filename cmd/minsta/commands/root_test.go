package commands

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/minsta/internal/api"
	"github.com/dyluth/minsta/internal/config"
	"github.com/dyluth/minsta/internal/engine"
	"github.com/dyluth/minsta/internal/minter"
	"github.com/dyluth/minsta/internal/printer"
	"github.com/dyluth/minsta/internal/testutil"
	"github.com/dyluth/minsta/internal/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default so runs do not leak into
// each other through the package-level flag variables.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	printer.SetOutput(&out, &errOut)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		printer.SetOutput(nil, nil)
	})

	err := Execute()
	return out.String(), err
}

func redisURL(mr *miniredis.Miniredis) string {
	return "redis://" + mr.Addr()
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	out, err := runCLI(t)
	assert.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "minsta")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, err := runCLI(t, "--goal", "x")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRootCommand_Subcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "mint", "latest", "list", "watch"} {
		assert.Contains(t, names, want)
	}
}

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2025-01-01")
	assert.Equal(t, "1.2.3 (commit: abc123, built: 2025-01-01)", rootCmd.Version)
}

func TestLatestCommand(t *testing.T) {
	reg, mr := testutil.NewRegistry(t)

	_, err := runCLI(t, "latest", "svc.a", "--redis-url", redisURL(mr), "--name", testutil.TestInstanceName)
	require.Error(t, err)
	assert.Equal(t, "no minter recorded for svc.a", err.Error())

	require.NoError(t, reg.SetLatestMinter(context.Background(), "svc.a", "alice"))

	out, err := runCLI(t, "latest", "svc.a", "--redis-url", redisURL(mr), "--name", testutil.TestInstanceName)
	require.NoError(t, err)
	assert.Equal(t, "alice\n", out)
}

func TestListCommand(t *testing.T) {
	reg, mr := testutil.NewRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.SetLatestMinter(ctx, "svc.b", "bob"))
	require.NoError(t, reg.SetLatestMinter(ctx, "svc.a", "alice"))

	t.Run("jsonl", func(t *testing.T) {
		out, err := runCLI(t, "list", "-o", "jsonl", "--redis-url", redisURL(mr), "--name", testutil.TestInstanceName)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 2)
		assert.JSONEq(t, `{"nft_contract_id":"svc.a","latest_minter_id":"alice"}`, lines[0])
		assert.JSONEq(t, `{"nft_contract_id":"svc.b","latest_minter_id":"bob"}`, lines[1])
	})

	t.Run("table", func(t *testing.T) {
		out, err := runCLI(t, "list", "-o", "default", "--redis-url", redisURL(mr), "--name", testutil.TestInstanceName)
		require.NoError(t, err)
		assert.Contains(t, out, "svc.a")
		assert.Contains(t, out, "2 contracts found")
	})

	t.Run("target filter", func(t *testing.T) {
		out, err := runCLI(t, "list", "-o", "jsonl", "--target", "*.b", "--redis-url", redisURL(mr), "--name", testutil.TestInstanceName)
		require.NoError(t, err)
		assert.JSONEq(t, `{"nft_contract_id":"svc.b","latest_minter_id":"bob"}`, strings.TrimSpace(out))
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := runCLI(t, "list", "--target", "[", "--redis-url", redisURL(mr))
		require.Error(t, err)
		assert.Equal(t, "invalid filter", err.Error())
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := runCLI(t, "list", "-o", "yaml", "--redis-url", redisURL(mr))
		require.Error(t, err)
		assert.Equal(t, "invalid output format", err.Error())
	})
}

func TestRegistryFlags_ConnectFailure(t *testing.T) {
	_, err := runCLI(t, "list", "-o", "default", "--redis-url", "redis://127.0.0.1:9")
	require.Error(t, err)
	assert.Equal(t, "Redis connection failed", err.Error())

	_, err = runCLI(t, "list", "-o", "default", "--redis-url", "://bad")
	require.Error(t, err)
	assert.Equal(t, "invalid Redis URL", err.Error())
}

func TestWatchCommand_InvalidKind(t *testing.T) {
	_, err := runCLI(t, "watch", "--kind", "committed,burned", "--redis-url", "redis://127.0.0.1:9")
	require.Error(t, err)
	assert.Equal(t, "invalid filter", err.Error())
}

func startTestServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()

	reg, mr := testutil.NewRegistry(t)
	target := testutil.NewFakeTarget(t)

	m, err := minter.New(minter.NewRegistryStore(reg), "proxy.near")
	require.NoError(t, err)

	tr := transport.New("proxy.near", map[string]config.TargetConfig{"svc.a": {Endpoint: target.URL()}}, "", time.Second)
	e := engine.NewEngine(m, tr, reg, engine.Options{InstanceName: testutil.TestInstanceName})

	srv := httptest.NewServer(api.NewServer(e, reg, ":0", config.DefaultCallerHeader).Handler())
	t.Cleanup(srv.Close)
	return srv, mr
}

func TestMintCommand(t *testing.T) {
	srv, mr := startTestServer(t)

	t.Run("wait for callback", func(t *testing.T) {
		out, err := runCLI(t, "mint", "--server", srv.URL, "--as", "alice", "--target", "svc.a",
			"--metadata", `{"title":"Sunset"}`, "--wait")
		require.NoError(t, err)
		assert.Contains(t, out, "Mint committed: alice is now the latest minter of svc.a")
	})

	t.Run("metadata file and registry wait", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "meta.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"title":"Dusk"}`), 0644))

		out, err := runCLI(t, "mint", "--server", srv.URL, "--as", "bob", "--target", "svc.a",
			"--metadata-file", path, "--wait-registry", "2s",
			"--redis-url", redisURL(mr), "--name", testutil.TestInstanceName)
		require.NoError(t, err)
		assert.Contains(t, out, "Registry records bob as latest minter of svc.a")
	})

	t.Run("rejected metadata", func(t *testing.T) {
		_, err := runCLI(t, "mint", "--server", srv.URL, "--as", "carol", "--target", "svc.a",
			"--metadata", "not json")
		require.Error(t, err)
		assert.Equal(t, "mint rejected", err.Error())
	})
}

func TestMintCommand_ServerUnreachable(t *testing.T) {
	_, err := runCLI(t, "mint", "--server", "http://127.0.0.1:9", "--as", "alice", "--target", "svc.a",
		"--metadata", "{}", "--timeout", "1s")
	require.Error(t, err)
	assert.Equal(t, "minsta server unreachable", err.Error())
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minsta.yml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"2.0\"\n"), 0644))

	_, err := runCLI(t, "serve", "--config", path)
	require.Error(t, err)
	assert.Equal(t, "failed to load configuration", err.Error())
}

func TestServeCommand_ListenAddressInUse(t *testing.T) {
	_, mr := testutil.NewRegistry(t)

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { busy.Close() })

	path := filepath.Join(t.TempDir(), "minsta.yml")
	cfg := fmt.Sprintf(`version: "1.0"
contract_id: proxy.near
server:
  listen_addr: %s
redis:
  url: %s
  instance_name: %s
endpoint_template: "http://{target}:8080"
`, busy.Addr().String(), redisURL(mr), testutil.TestInstanceName)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	t.Setenv("REDIS_URL", "")
	t.Setenv("MINSTA_LISTEN_ADDR", "")
	t.Setenv("MINSTA_INSTANCE_NAME", "")

	done := make(chan error, 1)
	go func() {
		_, err := runCLI(t, "serve", "--config", path)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, "failed to start API server", err.Error())
	case <-time.After(5 * time.Second):
		t.Fatal("serve kept running without a listener")
	}
}
