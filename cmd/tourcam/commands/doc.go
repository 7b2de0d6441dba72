// Package commands defines the tourcam CLI.
//
// Commands
//
//   - capture            Run a guided capture, then review and publish
//   - publish            Upload an existing panorama for a listing
//   - ledger history     Show publish attempts for a listing
//   - ledger duplicates  List publishes that may have left a duplicate
//   - ledger prune       Delete ledger entries past retention
//
// Configuration comes from the environment (and .env) plus the YAML capture
// profile named by CAPTURE_PROFILE.
package commands
