package frontend

import (
	"context"
)

// CreateDatabase creates a database in an existing tenant.
func (f *Frontend) CreateDatabase(ctx context.Context, req CreateDatabaseRequest) (Database, error) {
	d, err := f.sysdb.CreateDatabase(ctx, req.Tenant, req.Name)
	if err != nil {
		return Database{}, err
	}
	return toDatabase(d.ID, d.Name, d.Tenant)
}

// GetDatabase looks a database up by name.
func (f *Frontend) GetDatabase(ctx context.Context, req GetDatabaseRequest) (Database, error) {
	d, err := f.sysdb.GetDatabase(ctx, req.Tenant, req.Name)
	if err != nil {
		return Database{}, err
	}
	return toDatabase(d.ID, d.Name, d.Tenant)
}

// ListDatabases returns the databases of a tenant ordered by name.
func (f *Frontend) ListDatabases(ctx context.Context, tenant string) ([]Database, error) {
	if err := f.sysdb.Tenant(ctx, tenant); err != nil {
		return nil, err
	}
	rows, err := f.sysdb.ListDatabases(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]Database, 0, len(rows))
	for _, d := range rows {
		db, err := toDatabase(d.ID, d.Name, d.Tenant)
		if err != nil {
			return nil, err
		}
		out = append(out, db)
	}
	return out, nil
}

// DeleteDatabase deletes a database together with its collections.
func (f *Frontend) DeleteDatabase(ctx context.Context, req DeleteDatabaseRequest) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	ids, err := f.sysdb.DeleteDatabase(ctx, req.Tenant, req.Name)
	if err != nil {
		return err
	}
	for _, id := range ids {
		f.dropSegment(id)
	}
	f.logger.Info("database deleted", "tenant", req.Tenant, "database", req.Name, "collections", len(ids))
	return nil
}

func toDatabase(id, name, tenant string) (Database, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return Database{}, err
	}
	return Database{ID: uid, Name: name, Tenant: tenant}, nil
}
