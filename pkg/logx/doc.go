// Package logx configures clickd's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Debug/trace volume bounded (token-bucket sampler)
package logx
