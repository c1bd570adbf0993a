package storage

import "fmt"

// NewTarget creates the Target described by cfg, wrapped in a RetryTarget
// when cfg.MaxRetries > 0.
func NewTarget(cfg Config) (Target, error) {
	var (
		t   Target
		err error
	)

	switch cfg.Type {
	case "memory":
		t = NewMemoryTarget(cfg.Name)
	case "s3":
		t, err = newS3Target(cfg)
	case "gcs":
		t, err = newGCSTarget(cfg)
	case "azure":
		t, err = newAzureTarget(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %q (must be memory, s3, gcs, or azure)", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s storage %q: %w", cfg.Type, cfg.Name, err)
	}

	if cfg.MaxRetries > 0 {
		t = NewRetryTarget(t, cfg.MaxRetries)
	}
	return t, nil
}

func normalizePrefix(prefix string) string {
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	return prefix
}
