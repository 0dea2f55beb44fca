package applyalter

import (
	"context"

	"github.com/hlop3z/applyalter/internal/alter"
	"github.com/hlop3z/applyalter/internal/engine"
	"github.com/hlop3z/applyalter/internal/instance"
)

// Client is the main entry point for applying alters programmatically.
//
// Create a new client with New(). Database connections are opened lazily
// per run and always closed when the run ends, so one client can be used
// for any number of runs.
//
// Example:
//
//	client, err := applyalter.New(
//	    applyalter.WithInstancesFile("./instances.yaml"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := client.Apply(ctx, "alter_010.yaml", "alter_020.yaml"); err != nil {
//	    log.Fatal(err)
//	}
type Client struct {
	config    *Config
	instances []instance.Config
}

// New creates a new Client with the given options.
//
// At minimum, WithInstancesFile or WithInstances must be provided. The
// instance configuration is validated here; connections are not opened
// until Apply.
func New(opts ...Option) (*Client, error) {
	cfg := &Config{
		Verbosity: 2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var instances []instance.Config
	switch {
	case cfg.InstancesFile != "":
		dbcfg, err := instance.LoadConfig(cfg.InstancesFile)
		if err != nil {
			return nil, err
		}
		instances = dbcfg.Instances
		if dbcfg.IgnoreFailures {
			cfg.IgnoreFailures = true
		}
	case len(cfg.Instances) > 0:
		for _, in := range cfg.Instances {
			ic := instance.Config{ID: in.ID, Type: in.Type, URL: in.URL, Dialect: in.Dialect}
			if ic.Dialect == "" {
				ic.Dialect = instance.DetectDialect(ic.URL)
			}
			if err := ic.Validate(); err != nil {
				return nil, err
			}
			instances = append(instances, ic)
		}
	default:
		return nil, ErrMissingInstances
	}

	return &Client{config: cfg, instances: instances}, nil
}

// Apply loads the alter files (or zip packages of alter files) at the given
// paths and applies them, in order, to every configured instance they
// target. Alters recognized as applied already are skipped.
//
// In preview mode nothing is committed and plain SQL statements are only
// displayed. Otherwise each alter unit is committed once it has succeeded
// on every instance, unless a failure has been recorded earlier in the run.
func (c *Client) Apply(ctx context.Context, paths ...string) error {
	alters, err := alter.Load(paths...)
	if err != nil {
		return err
	}
	if len(alters) == 0 {
		return ErrNoAlters
	}

	handles := make([]*instance.Handle, 0, len(c.instances))
	for _, ic := range c.instances {
		h, err := instance.NewHandle(ic)
		if err != nil {
			for _, open := range handles {
				open.Close()
			}
			return err
		}
		handles = append(handles, h)
	}

	mode := engine.ModeCommit
	if c.config.Preview {
		mode = engine.ModePreview
	}

	e := engine.New(handles, engine.Options{
		Mode:                       mode,
		IgnoreFailures:             c.config.IgnoreFailures,
		ExecuteMigrationsInPreview: c.config.MigrationsInPreview,
	}, c.runContext())

	return e.Apply(ctx, alters)
}

// AlterInfo summarizes one loaded alter file.
type AlterInfo struct {
	// ID is the alter's file name; IDs sort in application order.
	ID string

	// Schema is the database schema the alter runs in.
	Schema string

	// Instances lists the targeted instance types; empty means all.
	Instances []string

	// Statements is the number of executable statements.
	Statements int

	// Checks is the number of idempotency checks, counting the custom
	// check query if present.
	Checks int

	// Description is the alter's free-form description.
	Description string
}

// Validate loads and validates the alter files at the given paths without
// touching any database. It returns a summary of each alter in application
// order.
func (c *Client) Validate(paths ...string) ([]AlterInfo, error) {
	alters, err := alter.Load(paths...)
	if err != nil {
		return nil, err
	}
	if len(alters) == 0 {
		return nil, ErrNoAlters
	}

	infos := make([]AlterInfo, 0, len(alters))
	for _, a := range alters {
		checks := len(a.Checks)
		if a.CheckOK != "" {
			checks++
		}
		infos = append(infos, AlterInfo{
			ID:          a.ID,
			Schema:      a.Schema,
			Instances:   a.Instances,
			Statements:  len(a.Statements),
			Checks:      checks,
			Description: a.Description,
		})
	}
	return infos, nil
}

// Instances returns the configured instances.
func (c *Client) Instances() []Instance {
	out := make([]Instance, 0, len(c.instances))
	for _, ic := range c.instances {
		out = append(out, Instance{ID: ic.ID, Type: ic.Type, URL: ic.URL, Dialect: ic.Dialect})
	}
	return out
}

func (c *Client) runContext() *engine.RunContext {
	if c.config.Logger == nil {
		return nil
	}
	level := engine.ReportLevel(c.config.Verbosity)
	if level < engine.LevelMain {
		level = engine.LevelMain
	}
	if level > engine.LevelDetail {
		level = engine.LevelDetail
	}
	return engine.NewRunContext(loggerReporter{c.config.Logger}, level)
}

// loggerReporter adapts a Logger to the engine's report sink.
type loggerReporter struct {
	l Logger
}

func (r loggerReporter) Report(_ engine.ReportLevel, msg string) {
	r.l.Printf("%s", msg)
}
