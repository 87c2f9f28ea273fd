// Package logx configures dealcast's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional operator relay sink (min-level + rate limiting) so publish
//     failures surface in the operator chat without spamming it
package logx
