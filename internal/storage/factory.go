package storage

import (
	"fmt"

	"antigravity2api-go/internal/config"
)

// NewFromConfig builds the backend named by cfg.StorageBackend. The caller
// still has to Initialize it.
func NewFromConfig(cfg *config.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case "", "file":
		return NewFileBackend(cfg.StorageBaseDir), nil
	case "redis":
		return NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix), nil
	case "mongodb":
		return NewMongoBackend(cfg.MongoURI, cfg.MongoDatabase), nil
	case "postgres":
		return NewPostgresBackend(cfg.PostgresDSN), nil
	case "git":
		return NewGitBackend(GitOptions{
			Path:        cfg.StorageBaseDir,
			RemoteURL:   cfg.GitRemoteURL,
			Branch:      cfg.GitBranch,
			Username:    cfg.GitUsername,
			Password:    cfg.GitPassword,
			AuthorName:  cfg.GitAuthorName,
			AuthorEmail: cfg.GitAuthorEmail,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
