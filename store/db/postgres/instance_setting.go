package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/atlas/store"
)

func (d *DB) UpsertInstanceSetting(ctx context.Context, upsert *store.InstanceSetting) (*store.InstanceSetting, error) {
	stmt := `INSERT INTO system_setting (name, value, description)
		VALUES (` + placeholders(3) + `)
		ON CONFLICT(name) DO UPDATE SET value = EXCLUDED.value, description = EXCLUDED.description`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.Name, upsert.Value, upsert.Description); err != nil {
		return nil, fmt.Errorf("failed to upsert system_setting: %w", err)
	}
	return upsert, nil
}

func (d *DB) ListInstanceSettings(ctx context.Context, find *store.FindInstanceSetting) ([]*store.InstanceSetting, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.Name != "" {
		where, args = append(where, "name = "+placeholder(len(args)+1)), append(args, find.Name)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT name, value, description FROM system_setting WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list system_settings: %w", err)
	}
	defer rows.Close()

	list := make([]*store.InstanceSetting, 0)
	for rows.Next() {
		s := &store.InstanceSetting{}
		if err := rows.Scan(&s.Name, &s.Value, &s.Description); err != nil {
			return nil, fmt.Errorf("failed to scan system_setting: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate system_settings: %w", err)
	}
	return list, nil
}

func (d *DB) DeleteInstanceSetting(ctx context.Context, delete *store.DeleteInstanceSetting) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM system_setting WHERE name = `+placeholder(1), delete.Name); err != nil {
		return fmt.Errorf("failed to delete system_setting: %w", err)
	}
	return nil
}
