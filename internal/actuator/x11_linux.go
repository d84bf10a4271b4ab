//go:build linux

package actuator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"

	"clickd/internal/clicker"
	logx "clickd/pkg/logx"
)

const x11Supported = true

var errClosed = errors.New("x11: connection closed")

// x11Actuator fakes pointer button events through the XTEST extension.
type x11Actuator struct {
	log  logx.Logger
	conn *xgb.Conn
	root xproto.Window

	mu sync.Mutex
}

// openX11 connects to display ("" means $DISPLAY).
func openX11(display string, log logx.Logger) (clicker.Actuator, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("x11 connect: %w", err)
	}
	if err := xtest.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("xtest init: %w", err)
	}
	screen := xproto.Setup(conn).DefaultScreen(conn)
	if screen == nil {
		conn.Close()
		return nil, fmt.Errorf("x11: no default screen")
	}
	log.Debug("x11 actuator ready", logx.String("display", display))
	return &x11Actuator{log: log, conn: conn, root: screen.Root}, nil
}

// buttonDetail maps to X11 core button numbers: 1 left, 2 middle, 3 right.
func buttonDetail(b clicker.Button) byte {
	switch b {
	case clicker.ButtonRight:
		return byte(xproto.ButtonIndex3)
	case clicker.ButtonMiddle:
		return byte(xproto.ButtonIndex2)
	default:
		return byte(xproto.ButtonIndex1)
	}
}

func (a *x11Actuator) fake(eventType byte, b clicker.Button) error {
	if a.conn == nil {
		return errClosed
	}
	if err := xtest.FakeInputChecked(
		a.conn,
		eventType,
		buttonDetail(b),
		xproto.TimeCurrentTime,
		a.root,
		0,
		0,
		0,
	).Check(); err != nil {
		return err
	}
	return nil
}

func (a *x11Actuator) Press(b clicker.Button) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.fake(xproto.ButtonPress, b); err != nil {
		return err
	}
	a.conn.Sync()
	return nil
}

func (a *x11Actuator) Release(b clicker.Button) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.fake(xproto.ButtonRelease, b); err != nil {
		return err
	}
	a.conn.Sync()
	return nil
}

// Click sends press and release back to back and flushes once.
func (a *x11Actuator) Click(b clicker.Button) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.fake(xproto.ButtonPress, b); err != nil {
		return err
	}
	if err := a.fake(xproto.ButtonRelease, b); err != nil {
		return err
	}
	a.conn.Sync()
	return nil
}

func (a *x11Actuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	return nil
}
