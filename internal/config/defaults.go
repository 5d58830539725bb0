package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/db/kotae.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/kotae/data/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/kotae/data/indices/vectors.bin"
	}
	if cfg.Storage.ArtifactRoot == "" {
		cfg.Storage.ArtifactRoot = "/usr/local/var/kotae/data/artifacts"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Generate.APIKeyEnv == "" {
		cfg.Generate.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Generate.Model == "" {
		cfg.Generate.Model = "gpt-4o-mini"
	}
	if cfg.Pipeline.DefaultDecision == "" {
		cfg.Pipeline.DefaultDecision = "VECTORIZE"
	}
}
