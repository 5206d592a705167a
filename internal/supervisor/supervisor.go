// Package supervisor launches and tracks the local SSH subprocess for each
// tunnel. It keeps at most one tracked process per remote tunnel id and
// re-launches opportunistically when a tracked process has died.
package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"tunnelout/internal/logging"
	"tunnelout/internal/models"
)

// procHandle tracks one spawned subprocess. done is closed when the process
// exits, giving an explicit running/not-running state without signal probing.
type procHandle struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (h *procHandle) running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Supervisor owns the in-memory mapping of tunnel id to tracked subprocess
type Supervisor struct {
	dataDir string
	sshBin  string

	mu    sync.Mutex
	procs map[string]*procHandle
}

// New creates a supervisor writing key material under dataDir and spawning
// the given ssh binary.
func New(dataDir, sshBin string) *Supervisor {
	if sshBin == "" {
		sshBin = "ssh"
	}
	return &Supervisor{
		dataDir: dataDir,
		sshBin:  sshBin,
		procs:   make(map[string]*procHandle),
	}
}

// WriteKeyMaterial writes the record's private key to a per-user file with
// owner-only permissions and ensures the per-user known-hosts file exists.
func (s *Supervisor) WriteKeyMaterial(rec *models.TunnelRecord) (string, string, error) {
	keyDir := filepath.Join(s.dataDir, "keys", rec.ID)
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return "", "", fmt.Errorf("failed to create key directory: %w", err)
	}

	keyPath := filepath.Join(keyDir, rec.TunnelID+".key")
	if err := os.WriteFile(keyPath, []byte(rec.SSHPrivateKey), 0600); err != nil {
		return "", "", fmt.Errorf("failed to write private key: %w", err)
	}

	knownHostsPath := filepath.Join(keyDir, "known_hosts")
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.WriteFile(knownHostsPath, nil, 0600); err != nil {
			return "", "", fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	return keyPath, knownHostsPath, nil
}

// EnsureRunning spawns the ssh subprocess for the record unless a tracked
// process for the same tunnel id is still alive. Launch failures are logged,
// not returned: launch is attempted opportunistically from multiple paths and
// must not abort the caller-facing request.
func (s *Supervisor) EnsureRunning(rec *models.TunnelRecord, keyPath, knownHostsPath string) {
	logger := logging.GetLogger()

	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.procs[rec.TunnelID]; ok {
		if h.running() {
			logger.Info("ssh already running for tunnel %s", rec.TunnelID)
			return
		}
		// Stale handle from a dead process
		delete(s.procs, rec.TunnelID)
	}

	cmd := exec.Command(s.sshBin, s.sshArgs(rec, keyPath, knownHostsPath)...)
	if err := cmd.Start(); err != nil {
		logger.Error("failed to launch ssh for tunnel %s: %v", rec.TunnelID, err)
		return
	}

	h := &procHandle{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(h.done)
	}()
	s.procs[rec.TunnelID] = h

	logger.Info("launched ssh for tunnel %s (pid %d)", rec.TunnelID, cmd.Process.Pid)
}

// Running reports whether a live subprocess is tracked for the tunnel id
func (s *Supervisor) Running(tunnelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.procs[tunnelID]
	return ok && h.running()
}

// Stop kills and forgets the tracked subprocess for a tunnel id, if any
func (s *Supervisor) Stop(tunnelID string) {
	s.mu.Lock()
	h, ok := s.procs[tunnelID]
	delete(s.procs, tunnelID)
	s.mu.Unlock()

	if ok && h.running() {
		_ = h.cmd.Process.Kill()
	}
}

// StopAll kills every tracked subprocess. Used on shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	handles := make([]*procHandle, 0, len(s.procs))
	for id, h := range s.procs {
		handles = append(handles, h)
		delete(s.procs, id)
	}
	s.mu.Unlock()

	for _, h := range handles {
		if h.running() {
			_ = h.cmd.Process.Kill()
		}
	}
}

// sshArgs builds the reverse-forward invocation: no remote command, forward
// failure terminates the connection, new host keys pinned to the per-tunnel
// known-hosts file.
func (s *Supervisor) sshArgs(rec *models.TunnelRecord, keyPath, knownHostsPath string) []string {
	return []string{
		"-i", keyPath,
		"-o", "UserKnownHostsFile=" + knownHostsPath,
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "ExitOnForwardFailure=yes",
		"-N",
		"-R", fmt.Sprintf("%d:%s:%d", rec.RemotePort, rec.LocalHost, rec.LocalPort),
		fmt.Sprintf("%s@%s", rec.SSHUser, rec.SSHHost),
	}
}

// BuildScript produces a portable shell equivalent of the managed invocation
// for users who want to run the tunnel themselves.
func (s *Supervisor) BuildScript(rec *models.TunnelRecord, keyPath, knownHostsPath string) string {
	sshCmd := fmt.Sprintf(
		"ssh -i %s -o UserKnownHostsFile=%s -o StrictHostKeyChecking=accept-new -N -R %d:%s:%d %s@%s",
		keyPath,
		knownHostsPath,
		rec.RemotePort,
		rec.LocalHost,
		rec.LocalPort,
		rec.SSHUser,
		rec.SSHHost,
	)

	return strings.Join([]string{
		fmt.Sprintf("cat > %s <<'EOF'", keyPath),
		strings.TrimSpace(rec.SSHPrivateKey),
		"EOF",
		fmt.Sprintf("chmod 600 %s", keyPath),
		sshCmd,
	}, "\n")
}
