package internal

import (
	// Database drivers for the sql publisher.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)
