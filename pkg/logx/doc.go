// Package logx is valubot's structured logging layer.
//
// It wraps zerolog behind a small value-type Logger so components can carry
// fixed fields (comp, rid, user_id, ...) without depending on zerolog
// directly:
//   - console output is human readable (short timestamp + file:line caller)
//   - file output is JSON lines
//   - an optional Telegram sink forwards WARN+ lines to an operator chat,
//     rate limited and never blocking the caller
package logx
