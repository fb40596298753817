package main

func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register("memory", func(cfg Config) (Executor, error) {
		return NewMemoryBackend(cfg), nil
	})
	registry.Register("sql", func(cfg Config) (Executor, error) {
		return NewSQLBackend(cfg)
	})
	return registry
}

func main() {
	cfg := LoadConfig()
	registry := DefaultRegistry()

	if _, err := registry.Open(cfg.Backend, cfg); err != nil {
		Logger.Fatalf("invalid configuration: %v", err)
	}

	server := NewServer(cfg, registry)
	if err := server.ListenAndServe(); err != nil {
		Logger.Fatalf("server stopped: %v", err)
	}
}
