// Package all links every checkpoint store backend into the binary.
package all

import (
	_ "github.com/abbasaisolutions/sygnify-sub002/internal/checkpoint/mssql"
	_ "github.com/abbasaisolutions/sygnify-sub002/internal/checkpoint/postgres"
	_ "github.com/abbasaisolutions/sygnify-sub002/internal/checkpoint/sqlite"
)
