// Package main provides the entry point of the settings service.
// It serves named configuration records of the MDR platform through a REST API
// backed by MongoDB or a SQL database, with an optional redis cache for name lookups.
// Callers see only the records their admin status and environment allow.
package main
