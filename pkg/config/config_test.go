package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 50, cfg.Kernel.UndoDepth)
	assert.Equal(t, 30*time.Minute, cfg.Optimizer.ProposalTTL)
	assert.Equal(t, 1, cfg.Optimizer.Workers)
	assert.Equal(t, 1000, cfg.Optimizer.MaxIterations)
	assert.True(t, cfg.Features.Metrics)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORE_DRIVER", "Postgres")
	v.Set("UNDO_DEPTH", -3)
	v.Set("OPTIMIZER_PROPOSAL_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg := fromViper(v)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, 50, cfg.Kernel.UndoDepth)
	assert.Equal(t, 30*time.Minute, cfg.Optimizer.ProposalTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}
