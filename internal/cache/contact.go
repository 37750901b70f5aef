package cache

import (
	"database/sql"
	"time"

	"github.com/matheus3301/macbridge/internal/schema"
)

// UpsertContact inserts or updates a contact keyed by account alias.
// Repeated pushes for the same id overwrite, never duplicate.
func (db *DB) UpsertContact(c *schema.ContactPayload) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO contacts (account_alias, account, name, form_name, thumb, sex, city, province, description, disturb, v1, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_alias) DO UPDATE SET
			account = excluded.account,
			name = excluded.name,
			form_name = excluded.form_name,
			thumb = excluded.thumb,
			sex = excluded.sex,
			city = excluded.city,
			province = excluded.province,
			description = excluded.description,
			disturb = excluded.disturb,
			v1 = excluded.v1,
			updated_at = excluded.updated_at`,
		c.AccountAlias, c.Account, c.Name, c.FormName, c.Thumb, int(c.Sex),
		c.City, c.Province, c.Description, c.Disturb, c.V1, now)
	return err
}

// SelectContact returns a contact by account alias, or nil when absent.
func (db *DB) SelectContact(id string) (*schema.ContactPayload, error) {
	var c schema.ContactPayload
	var sex int
	err := db.QueryRow(`
		SELECT account_alias, account, name, form_name, thumb, sex, city, province, description, disturb, v1
		FROM contacts WHERE account_alias = ?`, id).
		Scan(&c.AccountAlias, &c.Account, &c.Name, &c.FormName, &c.Thumb, &sex,
			&c.City, &c.Province, &c.Description, &c.Disturb, &c.V1)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Sex = schema.Gender(sex)
	return &c, nil
}

// RemoveContact deletes a contact by account alias.
func (db *DB) RemoveContact(id string) error {
	_, err := db.Exec(`DELETE FROM contacts WHERE account_alias = ?`, id)
	return err
}

// SelectContactIDs lists all cached contact ids.
func (db *DB) SelectContactIDs() ([]string, error) {
	rows, err := db.Query(`SELECT account_alias FROM contacts ORDER BY account_alias`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
