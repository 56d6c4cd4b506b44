package cache

// PutParameters persists per-realization scalar parameters under the table
// fingerprint they were loaded with, so builds served from cache (and frozen
// deployments) can answer parameter lookups without the original sources.
func (s *Store) PutParameters(fingerprint string, params map[int]map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for realization, values := range params {
		for name, value := range values {
			if _, err := tx.Exec(`
				INSERT INTO table_parameters (fingerprint, realization, name, value)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(fingerprint, realization, name) DO NOTHING
			`, fingerprint, realization, name, value); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// GetParameters loads the parameters stored under a table fingerprint.
// An empty result is not an error: parameters files are optional.
func (s *Store) GetParameters(fingerprint string) (map[int]map[string]string, error) {
	rows, err := s.db.Query(`
		SELECT realization, name, value FROM table_parameters WHERE fingerprint = ?
	`, fingerprint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	params := make(map[int]map[string]string)
	for rows.Next() {
		var realization int
		var name, value string
		if err := rows.Scan(&realization, &name, &value); err != nil {
			return nil, err
		}
		byName := params[realization]
		if byName == nil {
			byName = make(map[string]string)
			params[realization] = byName
		}
		byName[name] = value
	}
	return params, rows.Err()
}
