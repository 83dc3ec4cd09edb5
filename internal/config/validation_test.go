package config

import (
	"errors"
	"testing"
)

// validConfig returns a config that passes validation, for mutation in
// table tests.
func validConfig() *Config {
	return &Config{
		Provider:         ProviderOllama,
		ModelName:        "llama3.1",
		OllamaHost:       "http://localhost:11434",
		OfferThreshold:   DefaultOfferThreshold,
		ReturnThreshold:  DefaultReturnThreshold,
		LearnThreshold:   DefaultLearnThreshold,
		TopK:             DefaultTopK,
		ChunkSize:        DefaultChunkSize,
		ChunkOverlap:     DefaultChunkOverlap,
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "omnidoc",
		PostgresPassword: "secret",
		PostgresDBName:   "omnidoc",
		PostgresSSLMode:  "disable",
	}
}

func TestValidate_Defaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() on valid config = %v, want nil", err)
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var c *Config
	if err := c.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}

func TestValidate_Thresholds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{
			name:   "offer above learn",
			mutate: func(c *Config) { c.OfferThreshold = 95; c.ReturnThreshold = 95 },
			want:   ErrInvalidThresholds,
		},
		{
			name:   "offer above return",
			mutate: func(c *Config) { c.ReturnThreshold = 50 },
			want:   ErrInvalidThresholds,
		},
		{
			name:   "offer negative",
			mutate: func(c *Config) { c.OfferThreshold = -1 },
			want:   ErrInvalidThresholds,
		},
		{
			name:   "learn above 100",
			mutate: func(c *Config) { c.LearnThreshold = 101 },
			want:   ErrInvalidThresholds,
		},
		{
			name:   "equal offer and learn is valid",
			mutate: func(c *Config) { c.OfferThreshold = 90; c.ReturnThreshold = 90; c.LearnThreshold = 90 },
			want:   nil,
		},
		{
			name:   "zero top_k",
			mutate: func(c *Config) { c.TopK = 0 },
			want:   ErrInvalidTopK,
		},
		{
			name:   "excessive top_k",
			mutate: func(c *Config) { c.TopK = 51 },
			want:   ErrInvalidTopK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidate_Chunking(t *testing.T) {
	cfg := validConfig()
	cfg.ChunkOverlap = cfg.ChunkSize
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidChunking) {
		t.Errorf("Validate() with overlap == size = %v, want ErrInvalidChunking", err)
	}

	cfg = validConfig()
	cfg.ChunkSize = 10
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidChunking) {
		t.Errorf("Validate() with tiny chunk size = %v, want ErrInvalidChunking", err)
	}
}

func TestValidate_Provider(t *testing.T) {
	cfg := validConfig()
	cfg.Provider = "groq"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidProvider) {
		t.Errorf("Validate() with unknown provider = %v, want ErrInvalidProvider", err)
	}

	cfg = validConfig()
	cfg.ModelName = "  "
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidModelName) {
		t.Errorf("Validate() with blank model = %v, want ErrInvalidModelName", err)
	}
}

func TestValidate_Postgres(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPort = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidPostgresPort) {
		t.Errorf("Validate() with port 0 = %v, want ErrInvalidPostgresPort", err)
	}

	cfg = validConfig()
	cfg.PostgresDBName = ""
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidPostgresDBName) {
		t.Errorf("Validate() with empty db name = %v, want ErrInvalidPostgresDBName", err)
	}
}
