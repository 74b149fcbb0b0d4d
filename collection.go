package chromaffi

// Collection identifies a collection and the namespace it was resolved in.
// It holds no engine state and is immutable.
type Collection struct {
	id       string
	tenant   string
	database string
}

// NewCollection creates a collection reference.
func NewCollection(id, tenant, database string) *Collection {
	return &Collection{id: id, tenant: tenant, database: database}
}

// ID returns the engine-assigned uuid in its text form.
func (c *Collection) ID() string { return c.id }

// Tenant returns the tenant the collection was resolved in.
func (c *Collection) Tenant() string { return c.tenant }

// Database returns the database the collection was resolved in.
func (c *Collection) Database() string { return c.database }
