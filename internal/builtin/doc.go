// Package builtin registers the engine's bundled runner types. They are
// deliberately small — the engine treats every runner as opaque, and a real
// node library lives outside this module — but they cover the shapes the
// engine must handle: plain transforms, cycle-aware state, asynchronous
// I/O waits, and failure injection.
package builtin
