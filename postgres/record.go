// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/diffeo/go-orm/store"
)

// parseID converts a record identifier to its database form.  Any
// identifier that is not an integer cannot name a stored record.
func parseID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, store.ErrNoSuchRecord{Kind: kind, ID: id}
	}
	return n, nil
}

// scanRecord reads one (id, data, modified) row.
func scanRecord(kind string, row interface {
	Scan(...interface{}) error
}) (store.Record, error) {
	var (
		id       int64
		data     []byte
		modified time.Time
	)
	err := row.Scan(&id, &data, &modified)
	if err != nil {
		return store.Record{}, err
	}
	record := store.Record{
		Kind:     kind,
		ID:       strconv.FormatInt(id, 10),
		Modified: modified,
	}
	record.Data, err = bytesToMap(data)
	return record, err
}

func (s *pgStore) Create(kind string, data map[string]interface{}) (store.Record, error) {
	if kind == "" {
		return store.Record{}, store.ErrNoKind
	}
	bytes, err := mapToBytes(data)
	if err != nil {
		return store.Record{}, err
	}
	record := store.Record{
		Kind:     kind,
		Data:     store.CopyData(data),
		Modified: s.clock.Now(),
	}
	err = withTx(s, false, func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO "+kindTable+"(name) VALUES ($1) ON CONFLICT (name) DO NOTHING", kind)
		if err != nil {
			return err
		}
		var id int64
		row := tx.QueryRow("UPDATE "+kindTable+" SET last_id=last_id+1 WHERE name=$1 RETURNING last_id", kind)
		err = row.Scan(&id)
		if err != nil {
			return err
		}
		record.ID = strconv.FormatInt(id, 10)

		params := queryParams{}
		fields := fieldList{}
		fields.Add(&params, "kind", kind)
		fields.Add(&params, "id", id)
		fields.Add(&params, "data", bytes)
		fields.Add(&params, "modified", record.Modified)
		_, err = tx.Exec(fields.InsertStatement(recordTable), params...)
		return err
	})
	if err != nil {
		return store.Record{}, err
	}
	return record, nil
}

func (s *pgStore) Get(kind, id string) (store.Record, error) {
	dbID, err := parseID(kind, id)
	if err != nil {
		return store.Record{}, err
	}
	var record store.Record
	params := queryParams{}
	query := buildSelect([]string{
		recordID,
		recordData,
		recordModified,
	}, []string{
		recordTable,
	}, []string{
		recordKind + "=" + params.Param(kind),
		recordID + "=" + params.Param(dbID),
	})
	err = withTx(s, true, func(tx *sql.Tx) error {
		var err error
		record, err = scanRecord(kind, tx.QueryRow(query, params...))
		return err
	})
	if err == sql.ErrNoRows {
		return store.Record{}, store.ErrNoSuchRecord{Kind: kind, ID: id}
	}
	return record, err
}

func (s *pgStore) List(kind string) ([]store.Record, error) {
	params := queryParams{}
	query := buildSelect([]string{
		recordID,
		recordData,
		recordModified,
	}, []string{
		recordTable,
	}, []string{
		recordKind + "=" + params.Param(kind),
	}) + " ORDER BY " + recordID
	result := []store.Record{}
	err := queryAndScan(s, query, params, func(rows *sql.Rows) error {
		record, err := scanRecord(kind, rows)
		if err != nil {
			return err
		}
		result = append(result, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *pgStore) Update(kind, id string, data map[string]interface{}, partial bool) (store.Record, error) {
	dbID, err := parseID(kind, id)
	if err != nil {
		return store.Record{}, err
	}
	var record store.Record
	err = withTx(s, false, func(tx *sql.Tx) error {
		params := queryParams{}
		query := buildSelect([]string{
			recordID,
			recordData,
			recordModified,
		}, []string{
			recordTable,
		}, []string{
			recordKind + "=" + params.Param(kind),
			recordID + "=" + params.Param(dbID),
		}) + " FOR UPDATE"
		existing, err := scanRecord(kind, tx.QueryRow(query, params...))
		if err != nil {
			return err
		}

		record = existing
		if partial {
			record.Data = store.MergeData(existing.Data, data)
		} else {
			record.Data = store.CopyData(data)
		}
		record.Modified = s.clock.Now()
		bytes, err := mapToBytes(record.Data)
		if err != nil {
			return err
		}

		params = queryParams{}
		fields := fieldList{}
		fields.Add(&params, "data", bytes)
		fields.Add(&params, "modified", record.Modified)
		_, err = tx.Exec(buildUpdate(recordTable, fields.UpdateChanges(), []string{
			"kind=" + params.Param(kind),
			"id=" + params.Param(dbID),
		}), params...)
		return err
	})
	if err == sql.ErrNoRows {
		return store.Record{}, store.ErrNoSuchRecord{Kind: kind, ID: id}
	}
	return record, err
}

func (s *pgStore) Delete(kind, id string) error {
	dbID, err := parseID(kind, id)
	if err != nil {
		return err
	}
	var count int64
	err = withTx(s, false, func(tx *sql.Tx) error {
		result, err := tx.Exec("DELETE FROM "+recordTable+" WHERE kind=$1 AND id=$2", kind, dbID)
		if err != nil {
			return err
		}
		count, err = result.RowsAffected()
		return err
	})
	if err == nil && count == 0 {
		err = store.ErrNoSuchRecord{Kind: kind, ID: id}
	}
	return err
}

func (s *pgStore) Count() (map[string]int, error) {
	result := make(map[string]int)
	query := buildSelect([]string{
		kindName,
		"COUNT(" + recordID + ")",
	}, []string{
		kindTable + " LEFT OUTER JOIN " + recordTable + " ON " + recordKind + "=" + kindName,
	}, nil) + " GROUP BY " + kindName
	err := queryAndScan(s, query, queryParams{}, func(rows *sql.Rows) error {
		var (
			name  string
			count int
		)
		err := rows.Scan(&name, &count)
		if err != nil {
			return err
		}
		result[name] = count
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
