package app

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skobkin/proctop-web/internal/config"
)

func TestRunServesAndShutsDown(t *testing.T) {
	base := t.TempDir()
	procRoot := filepath.Join(base, "proc")
	require.NoError(t, os.MkdirAll(procRoot, 0o755))
	files := map[string]string{
		filepath.Join(procRoot, "stat"):    "cpu  10 0 0 10 0 0 0 0 0 0\nprocesses 1\nprocs_running 1\n",
		filepath.Join(procRoot, "uptime"):  "5.00 1.00\n",
		filepath.Join(procRoot, "meminfo"): "MemTotal: 100 kB\nMemFree: 50 kB\n",
	}
	for path, content := range files {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg := config.Default()
	cfg.ListenAddr = freeAddr(t)
	cfg.SampleInterval = 10 * time.Millisecond
	cfg.ClockTicks = 100
	cfg.Paths.ProcRoot = procRoot
	cfg.Paths.OSReleasePath = filepath.Join(base, "os-release")
	cfg.Paths.PasswdPath = filepath.Join(base, "passwd")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, logger, cfg)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.ListenAddr + "/readyz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond, "server never became ready")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsOnMissingProcRoot(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.ProcRoot = filepath.Join(t.TempDir(), "absent")
	cfg.ClockTicks = 100

	err := Run(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
	assert.ErrorContains(t, err, "init proc reader")
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}
