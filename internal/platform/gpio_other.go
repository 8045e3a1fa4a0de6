//go:build !linux

package platform

// The host platform needs sysfs GPIO and sethostname, which only Linux
// provides. Other systems can still run the simulated platform.

func checkGPIO(root string) error {
	return ErrNotSupported
}

func setHostname(name string) error {
	return ErrNotSupported
}

type edgeLine struct{}

func openEdgeLine(root string, line int, edge Edge) (*edgeLine, error) {
	return nil, ErrNotSupported
}

func (el *edgeLine) watch(stop <-chan struct{}, handler func()) {}

func (el *edgeLine) close() error {
	return nil
}
