//go:build !linux

package actuator

import (
	"clickd/internal/clicker"
	logx "clickd/pkg/logx"
)

const x11Supported = false

func openX11(string, logx.Logger) (clicker.Actuator, error) {
	return nil, ErrUnsupportedBackend
}
