// Package logx configures imgbot's structured logging.
//
// It wraps zerolog behind a small Logger value type so components can carry
// fixed fields (comp=..., rid=...) without importing zerolog directly:
//   - console output stays readable (short timestamp + short caller)
//   - file output is JSON
//   - an optional Telegram sink forwards WARN+ lines to the administrator chat
package logx
