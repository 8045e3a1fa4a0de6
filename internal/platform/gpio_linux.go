//go:build linux

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/siotlab/bdsc/internal/logging"
)

const (
	// pollTimeoutMs bounds each poll so watchers notice Close
	pollTimeoutMs = 100

	// exportSettle is how long to wait for udev to expose a new line
	exportSettle = time.Second
)

func checkGPIO(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("gpio subsystem unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("gpio subsystem unavailable: %s is not a directory", root)
	}
	return nil
}

func setHostname(name string) error {
	if err := unix.Sethostname([]byte(name)); err != nil {
		return fmt.Errorf("sethostname %q: %w", name, err)
	}
	return nil
}

// edgeLine is one exported sysfs GPIO line configured for edge interrupts.
type edgeLine struct {
	root     string
	line     int
	fd       int
	exported bool
}

func openEdgeLine(root string, line int, edge Edge) (*edgeLine, error) {
	dir := filepath.Join(root, "gpio"+strconv.Itoa(line))
	el := &edgeLine{root: root, line: line, fd: -1}

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := writeSysfs(filepath.Join(root, "export"), strconv.Itoa(line)); err != nil {
			return nil, err
		}
		el.exported = true
	}

	// Attribute files may appear with root-only permissions until udev
	// has run, so retry for a short while.
	deadline := time.Now().Add(exportSettle)
	for {
		err := writeSysfs(filepath.Join(dir, "direction"), "in")
		if err == nil {
			err = writeSysfs(filepath.Join(dir, "edge"), edge.String())
		}
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			_ = el.close()
			return nil, err
		}
		time.Sleep(20 * time.Millisecond)
	}

	fd, err := unix.Open(filepath.Join(dir, "value"), unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		_ = el.close()
		return nil, fmt.Errorf("open value: %w", err)
	}
	el.fd = fd

	// Consume the current level so the first poll only reports new edges.
	el.drain()
	return el, nil
}

// watch polls for edges until stop is closed, calling handler once per
// edge notification.
func (el *edgeLine) watch(stop <-chan struct{}, handler func()) {
	pfd := []unix.PollFd{{
		Fd:     int32(el.fd),
		Events: unix.POLLPRI | unix.POLLERR,
	}}

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := unix.Poll(pfd, pollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			logging.Error("GPIO poll failed", zap.Int("gpio", el.line), zap.Error(err))
			return
		}
		if n == 0 {
			continue
		}
		if pfd[0].Revents&(unix.POLLPRI|unix.POLLERR) != 0 {
			el.drain()
			handler()
		}
	}
}

func (el *edgeLine) drain() {
	var buf [8]byte
	_, _ = unix.Seek(el.fd, 0, 0)
	_, _ = unix.Read(el.fd, buf[:])
}

func (el *edgeLine) close() error {
	var firstErr error
	if el.fd >= 0 {
		if err := unix.Close(el.fd); err != nil {
			firstErr = err
		}
		el.fd = -1
	}
	if el.exported {
		if err := writeSysfs(filepath.Join(el.root, "unexport"), strconv.Itoa(el.line)); err != nil && firstErr == nil {
			firstErr = err
		}
		el.exported = false
	}
	return firstErr
}

func writeSysfs(path, value string) error {
	if err := os.WriteFile(path, []byte(value), 0); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
