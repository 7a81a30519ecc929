// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

const (
	// SQL table names:
	kindTable   = "record_kind"
	recordTable = "record"

	// SQL column names:
	kindName       = kindTable + ".name"
	kindLastID     = kindTable + ".last_id"
	recordKind     = recordTable + ".kind"
	recordID       = recordTable + ".id"
	recordData     = recordTable + ".data"
	recordModified = recordTable + ".modified"
)
