package chromaffi

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/chromaffi/internal/config"
	"github.com/hupe1980/chromaffi/internal/executor"
	"github.com/hupe1980/chromaffi/internal/frontend"
)

// Client is an open engine together with the executor that drives it.
//
// All calls on a Client run one at a time on its executor. A Client is safe
// for concurrent use; concurrent calls are queued in submission order.
type Client struct {
	exec    *executor.Executor
	fe      *frontend.Frontend
	cfg     *config.Config
	logger  *Logger
	metrics MetricsCollector

	closeOnce sync.Once
	closeErr  error
}

// NewClient opens a client from construction settings. Ambient options
// (logging, executor, resources, snapshots, metrics) come from the CHROMA_*
// environment.
func NewClient(ctx context.Context, s Settings, optFns ...Option) (*Client, error) {
	cfg, e := s.resolve(SourceCreateClient)
	if e != nil {
		return nil, e
	}
	return newClient(ctx, SourceCreateClient, cfg, optFns)
}

// NewClientFromConfig opens a client from an inline YAML configuration.
// A malformed document is InvalidArgument, a rule violation ValidationError.
func NewClientFromConfig(ctx context.Context, yamlConfig string, optFns ...Option) (*Client, error) {
	cfg, err := config.Parse([]byte(yamlConfig))
	if err != nil {
		code := InvalidArgument
		if errors.Is(err, config.ErrInvalid) {
			code = ValidationError
		}
		return nil, Wrap(code, SourceCreateClientFromConfig, MsgInvalidConfig, err)
	}
	return newClient(ctx, SourceCreateClientFromConfig, cfg, optFns)
}

func newClient(ctx context.Context, source string, cfg *config.Config, optFns []Option) (*Client, error) {
	opts := options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.logger
	if logger == nil {
		l, err := NewLoggerFromConfig(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, Wrap(ValidationError, source, MsgInvalidConfig, err)
		}
		logger = l
	}

	metrics := opts.metricsCollector
	if metrics == nil {
		if cfg.Metrics.Enabled {
			metrics = NewPrometheusCollector()
		} else {
			metrics = NoopMetricsCollector{}
		}
	}

	feCfg, err := cfg.Frontend(logger.Logger)
	if err != nil {
		return nil, Wrap(ValidationError, source, MsgInvalidConfig, err)
	}

	exec, err := executor.New(func(o *executor.Options) {
		o.LockOSThread = opts.lockOSThread || cfg.Executor.LockOSThread
	})
	if err != nil {
		return nil, Wrap(InternalError, source, MsgExecutor, err)
	}

	var fe *frontend.Frontend
	err = exec.Run(ctx, func(ctx context.Context) error {
		var err error
		fe, err = frontend.New(ctx, feCfg)
		return err
	})
	if err != nil {
		exec.Close()
		return nil, Wrap(InternalError, source, MsgFrontend, err)
	}

	if p, ok := metrics.(*PrometheusCollector); ok {
		if err := p.RegisterEngine(fe.Stats); err != nil {
			logger.WarnContext(ctx, "engine metrics not registered", "error", err)
		}
	}

	logger.LogClientOpened(ctx, cfg.PersistPath, cfg.Cache.Capacity)

	return &Client{
		exec:    exec,
		fe:      fe,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Close closes the engine and stops the executor. It is safe to call more
// than once; later calls return the first result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		ctx := context.Background()
		c.closeErr = c.exec.Run(ctx, func(context.Context) error {
			return c.fe.Close()
		})
		c.exec.Close()
		c.logger.LogClientClosed(ctx, c.closeErr)
	})
	return c.closeErr
}

// Config returns the resolved configuration. It must not be modified.
func (c *Client) Config() *config.Config { return c.cfg }

// Logger returns the client logger.
func (c *Client) Logger() *Logger { return c.logger }

// call runs fn on the executor and records the outcome. Errors that are not
// already an *Error are classified with FromEngine.
func (c *Client) call(ctx context.Context, source, message string, fn func(ctx context.Context) error) (err error) {
	start := time.Now()
	defer func() {
		d := time.Since(start)
		c.metrics.RecordCall(source, d, ErrorCode(err))
		c.logger.LogCall(ctx, source, d, err)
	}()

	if err := c.exec.Run(ctx, fn); err != nil {
		return FromEngine(source, message, err)
	}
	return nil
}

// Heartbeat returns the engine clock in nanoseconds since the Unix epoch.
func (c *Client) Heartbeat(ctx context.Context) (int64, error) {
	var ns int64
	err := c.call(ctx, SourceHeartbeat, MsgHeartbeat, func(ctx context.Context) error {
		var err error
		ns, err = c.fe.Heartbeat(ctx)
		return err
	})
	return ns, err
}

// Reset deletes all data. It fails with ValidationError unless the client
// was opened with AllowReset.
func (c *Client) Reset(ctx context.Context) error {
	return c.call(ctx, SourceReset, MsgReset, func(ctx context.Context) error {
		return c.fe.Reset(ctx)
	})
}

// CreateDatabase creates a database. An empty tenant is the default tenant.
func (c *Client) CreateDatabase(ctx context.Context, name, tenant string) error {
	return c.call(ctx, SourceCreateDatabase, MsgCreateDatabase, func(ctx context.Context) error {
		req, err := frontend.NewCreateDatabaseRequest(orDefault(tenant, frontend.DefaultTenant), name)
		if err != nil {
			return requestError(SourceCreateDatabase, err)
		}
		_, err = c.fe.CreateDatabase(ctx, req)
		return err
	})
}

// GetDatabase returns the id of a database.
func (c *Client) GetDatabase(ctx context.Context, name, tenant string) (string, error) {
	var id string
	err := c.call(ctx, SourceGetDatabase, MsgGetDatabase, func(ctx context.Context) error {
		req, err := frontend.NewGetDatabaseRequest(orDefault(tenant, frontend.DefaultTenant), name)
		if err != nil {
			return requestError(SourceGetDatabase, err)
		}
		db, err := c.fe.GetDatabase(ctx, req)
		if err != nil {
			return err
		}
		id = db.ID.String()
		return nil
	})
	return id, err
}

// DeleteDatabase deletes a database with all its collections.
func (c *Client) DeleteDatabase(ctx context.Context, name, tenant string) error {
	return c.call(ctx, SourceDeleteDatabase, MsgDeleteDatabase, func(ctx context.Context) error {
		req, err := frontend.NewDeleteDatabaseRequest(orDefault(tenant, frontend.DefaultTenant), name)
		if err != nil {
			return requestError(SourceDeleteDatabase, err)
		}
		return c.fe.DeleteDatabase(ctx, req)
	})
}

// CreateCollectionParams are the arguments of CreateCollection.
type CreateCollectionParams struct {
	Name string
	// ConfigurationJSON and MetadataJSON are optional. Empty means absent.
	ConfigurationJSON *string
	MetadataJSON      *string
	// GetOrCreate returns an existing collection instead of failing.
	GetOrCreate bool
	// Tenant and Database default when empty.
	Tenant   string
	Database string
}

// CreateCollection creates a collection, or resolves it when GetOrCreate is
// set and it exists.
func (c *Client) CreateCollection(ctx context.Context, p CreateCollectionParams) (*Collection, error) {
	var coll *Collection
	err := c.call(ctx, SourceCreateCollection, MsgCreateCollection, func(ctx context.Context) error {
		cfg, e := decodeConfiguration(SourceCreateCollection, p.ConfigurationJSON)
		if e != nil {
			return e
		}
		md, e := decodeMetadata(SourceCreateCollection, p.MetadataJSON)
		if e != nil {
			return e
		}
		tenant := orDefault(p.Tenant, frontend.DefaultTenant)
		database := orDefault(p.Database, frontend.DefaultDatabase)

		req, err := frontend.NewCreateCollectionRequest(tenant, database, p.Name, md, cfg, p.GetOrCreate)
		if err != nil {
			return requestError(SourceCreateCollection, err)
		}
		created, err := c.fe.CreateCollection(ctx, req)
		if err != nil {
			return err
		}
		coll = NewCollection(created.ID.String(), tenant, database)
		return nil
	})
	return coll, err
}

// GetCollection resolves a collection by name.
func (c *Client) GetCollection(ctx context.Context, name, tenant, database string) (*Collection, error) {
	var coll *Collection
	err := c.call(ctx, SourceGetCollection, MsgGetCollection, func(ctx context.Context) error {
		tenant := orDefault(tenant, frontend.DefaultTenant)
		database := orDefault(database, frontend.DefaultDatabase)

		req, err := frontend.NewGetCollectionRequest(tenant, database, name)
		if err != nil {
			return requestError(SourceGetCollection, err)
		}
		found, err := c.fe.GetCollection(ctx, req)
		if err != nil {
			return err
		}
		coll = NewCollection(found.ID.String(), tenant, database)
		return nil
	})
	return coll, err
}

// DeleteCollection deletes a collection by name.
func (c *Client) DeleteCollection(ctx context.Context, name, tenant, database string) error {
	return c.call(ctx, SourceDeleteCollection, MsgDeleteCollection, func(ctx context.Context) error {
		req, err := frontend.NewDeleteCollectionRequest(
			orDefault(tenant, frontend.DefaultTenant),
			orDefault(database, frontend.DefaultDatabase),
			name,
		)
		if err != nil {
			return requestError(SourceDeleteCollection, err)
		}
		return c.fe.DeleteCollection(ctx, req)
	})
}

// ListCollections returns the collection names of a database in creation
// order.
func (c *Client) ListCollections(ctx context.Context, tenant, database string) ([]string, error) {
	var names []string
	err := c.call(ctx, SourceListCollections, MsgListCollections, func(ctx context.Context) error {
		req, err := frontend.NewListCollectionsRequest(
			orDefault(tenant, frontend.DefaultTenant),
			orDefault(database, frontend.DefaultDatabase),
		)
		if err != nil {
			return requestError(SourceListCollections, err)
		}
		colls, err := c.fe.ListCollections(ctx, req)
		if err != nil {
			return err
		}
		names = make([]string, 0, len(colls))
		for _, coll := range colls {
			names = append(names, coll.Name)
		}
		return nil
	})
	return names, err
}

// MetricsText renders the call metrics in the Prometheus text format. It
// fails with ValidationError when the collector cannot export text.
func (c *Client) MetricsText(ctx context.Context) (string, error) {
	var text string
	err := c.call(ctx, SourceMetricsText, MsgMetrics, func(context.Context) error {
		exp, ok := c.metrics.(TextExporter)
		if !ok {
			return NewError(ValidationError, SourceMetricsText, MsgMetricsDisabled)
		}
		var buf bytes.Buffer
		if err := exp.WriteText(&buf); err != nil {
			return err
		}
		text = buf.String()
		return nil
	})
	return text, err
}
