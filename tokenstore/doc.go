// Package tokenstore provides storage abstractions for authentication tokens.
//
// Backends with different security and deployment tradeoffs:
//   - Memory: process-local storage, the default for tests and embedders that
//     manage persistence themselves
//   - File: local filesystem storage with atomic writes and secure permissions
//   - Env: read-only environment variable access (requires external secret
//     management)
//   - Keyring: OS-native credential storage (macOS Keychain, Windows
//     Credential Manager, Linux Secret Service)
//   - Redis: shared storage for multiple processes fronting the same API
//   - Bolt: embedded bbolt database storage
//
// Token refresh requires writable storage; read-only backends such as Env can
// only back static-token setups.
package tokenstore
