// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Precedence

CLI flags win over environment variables, which win over a .env file in
the working directory. Unset values use the defaults below.

	-p                 PORT              3318
	-t                 DATABASE_TYPE     sqlite
	-d                 DATABASE_URL      (required)
	-identity-salt     IDENTITY_SALT     (required)
	-vote-window       VOTE_WINDOW       24h
	-sweep-interval    SWEEP_INTERVAL    1m
	-max-cast-retries  MAX_CAST_RETRIES  5
	-log-level         LOG_LEVEL         info

# Validation

ParseFlags returns an error when a required value is missing, the port is
out of range, the database type is unknown, or a duration or retry count
is not positive. A sweep interval of 0 disables the background sweep.
*/
package cliparse
