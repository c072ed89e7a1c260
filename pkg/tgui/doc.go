// Package tgui holds the small Telegram UI helpers the chat surfaces share:
// inline and reply keyboard builders, "ns:action:payload" callback data,
// HTML-safe message building and a short-lived stash for values that do
// not fit into callback data.
package tgui
