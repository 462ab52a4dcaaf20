package backend

import (
	"context"
	"fmt"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/access"
	"github.com/relabs-tech/kadmin/core/backend/kss"
	"github.com/relabs-tech/kadmin/core/logger"
	"github.com/relabs-tech/kadmin/core/password"
	"github.com/relabs-tech/kadmin/core/schema"
	"github.com/relabs-tech/kadmin/core/store"
)

// Backend is the generic admin backend
type Backend struct {
	schema      *schema.Schema
	router      *mux.Router
	registry    *store.Registry
	entities    map[string]*entity
	order       []string
	uploader    *kss.Uploader
	passwords   *password.Service
	jwt         *access.JWT
	loginEntity string
	pageSize    int
}

// Entity selects a model of the schema to be served, together with its configuration
type Entity struct {
	// Model is the name of the model in the schema
	Model string
	// Configuration is the entity configuration. Optional, defaults to an empty configuration.
	Configuration *Configuration
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Schema describes all models and enums. This is mandatory.
	Schema *schema.Schema
	// Entities are the models which get routes. This is mandatory.
	Entities []Entity
	// Store opens the collections of the entities. This is mandatory.
	Store store.Store
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// KSS configures the file storage for upload fields. It is mandatory if any
	// entity has an upload field.
	KSS *kss.Configuration
	// Passwords derives and verifies password digests. Together with JWT it enables login.
	Passwords *password.Service
	// JWT issues and validates tokens. If set, requests are authenticated with it.
	JWT *access.JWT
	// LoginEntity is the entity whose records may log in. Defaults to "admin".
	LoginEntity string
	// Notifier receives create, update and delete events. This is optional.
	Notifier core.Notifier
	// PageSize is the size of list pages. Defaults to 10.
	PageSize int
	// CORSOrigins are the allowed origins. Defaults to the local development frontends.
	CORSOrigins []string
	// CompressionLevel is the gzip level of responses. Defaults to the default compression.
	CompressionLevel int
	// MetricsRegistry exposes request metrics under /metrics. This is optional.
	MetricsRegistry *prometheus.Registry
}

// New realizes the actual backend. It opens the collections of all entities
// and adds the routes to the router. Invalid builders panic.
func New(bb *Builder) *Backend {
	if bb.Schema == nil {
		panic("Schema is missing")
	}
	if bb.Store == nil {
		panic("Store is missing")
	}
	if bb.Router == nil {
		panic("Router is missing")
	}
	if len(bb.Entities) == 0 {
		panic("Entities are missing")
	}

	b := &Backend{
		schema:      bb.Schema,
		router:      bb.Router,
		entities:    map[string]*entity{},
		passwords:   bb.Passwords,
		jwt:         bb.JWT,
		loginEntity: bb.LoginEntity,
		pageSize:    bb.PageSize,
	}
	if b.loginEntity == "" {
		b.loginEntity = DefaultLoginEntity
	}
	if b.pageSize <= 0 {
		b.pageSize = DefaultPageSize
	}

	models := []*schema.Model{}
	configs := []*Configuration{}
	for _, ent := range bb.Entities {
		model, ok := bb.Schema.Model(ent.Model)
		if !ok {
			panic(fmt.Sprintf("entity %s is not in schema", ent.Model))
		}
		if _, ok := b.entities[model.Collection()]; ok {
			panic(fmt.Sprintf("entity %s declared twice", ent.Model))
		}
		config := ent.Configuration
		if config == nil {
			config = &Configuration{}
		}
		if err := config.validate(); err != nil {
			panic(fmt.Errorf("invalid configuration for entity %s: %w", ent.Model, err))
		}
		models = append(models, model)
		configs = append(configs, config)
		b.entities[model.Collection()] = nil
	}

	registry, err := store.NewRegistry(context.Background(), bb.Store, models...)
	if err != nil {
		panic(err)
	}
	b.registry = registry

	for i, model := range models {
		controller := NewController(bb.Schema, model, configs[i], registry.MustCollection(model), bb.Notifier)
		e, err := newEntity(controller)
		if err != nil {
			panic(fmt.Errorf("entity %s: %w", model.Name, err))
		}
		b.entities[model.Collection()] = e
		b.order = append(b.order, model.Collection())
	}

	logger.AddRequestID(b.router)
	if bb.MetricsRegistry != nil {
		b.handleMetrics(b.router, bb.MetricsRegistry)
	}
	b.handleCORS(bb.CORSOrigins)
	b.handleCompression(bb.CompressionLevel)
	if b.jwt != nil {
		b.router.Use(b.jwt.Middleware())
	}

	if err := b.configureKSS(bb.KSS); err != nil {
		panic(err)
	}

	b.handleRoutes(b.router)
	return b
}

// handleRoutes adds all necessary handlers for the configured entities
func (b *Backend) handleRoutes(router *mux.Router) {
	logger.Default().Debugln("backend: HandleRoutes")

	b.handleVersion(router)
	access.HandleCredentialsRoute(router)
	b.handleLogin(router)
	b.handleDashboard(router)
	for _, name := range b.order {
		b.createCollectionResource(router, b.entities[name])
	}
}

// Controller returns the controller of the entity with collection name name
func (b *Backend) Controller(name string) (*Controller, bool) {
	e, ok := b.entities[name]
	if !ok {
		return nil, false
	}
	return e.controller, true
}

// Entities returns the collection names of all served entities in declaration order
func (b *Backend) Entities() []string {
	return append([]string{}, b.order...)
}
