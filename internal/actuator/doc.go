// Package actuator provides the input backends behind clicker.Actuator:
// X11 XTEST on linux, a dry-run recorder everywhere, and a stub that
// reports ErrUnsupportedBackend on platforms without injection support.
package actuator
