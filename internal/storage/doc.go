// Package storage persists click session history.
//
// Both backends keep only the newest records (Config.KeepRecords); older
// ones are pruned as new sessions are written.
package storage
