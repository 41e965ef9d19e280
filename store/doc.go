// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package store implements the voting persistence and roster ports.
//
// SQL backs production on Postgres or SQLite; Memory serves tests and
// single-process setups. Both enforce the same rules: version-checked
// updates, one ballot per voter, one active vote per group and kind.
package store
