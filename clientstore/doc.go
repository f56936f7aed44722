// Package clientstore implements tokenrelay.Store, the repository of OAuth2
// authorized clients (access and refresh tokens per user and provider
// registration).
//
// Three backends are provided:
//
//   - Memory: process-local map, for tests and single-instance deployments
//   - Redis: JSON documents under "<prefix>authorized_client:<registration>:<principal>",
//     both parts query-escaped
//   - Postgres: the oauth2_authorized_client table, schema managed with goose (Migrate)
//
// Every backend returns (nil, nil) from Load when no record exists, and Save
// replaces the record with the same (registration, principal) key.
package clientstore
