package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("k", 32))
	cfg := fromViper(newViper())

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.ClientOrigins)
	assert.False(t, cfg.PayHere.Sandbox)
	assert.Equal(t, "LKR", cfg.PayHere.Currency)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("PORT", "8081")
	t.Setenv("CLIENT_ORIGIN", "https://a.example, https://b.example")
	t.Setenv("PAYHERE_SANDBOX", "true")
	t.Setenv("FILE_GC_INTERVAL", "30s")
	cfg := fromViper(newViper())

	assert.True(t, cfg.Production())
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.ClientOrigins)
	assert.True(t, cfg.PayHere.Sandbox)
	assert.Equal(t, 30*time.Second, cfg.FileGCEvery)
}

func TestValidate(t *testing.T) {
	cfg := Config{DBDriver: "sqlite", JWTSecret: "short", JWTTTL: time.Hour}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	cfg = Config{DBDriver: "mongo", JWTSecret: strings.Repeat("x", 40), JWTTTL: time.Hour}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")

	cfg.MongoURI = "mongodb://localhost:27017"
	assert.NoError(t, cfg.Validate())

	cfg.DBDriver = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestProductionLeavesSandboxOff(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", strings.Repeat("k", 32))
	t.Setenv("PAYHERE_MERCHANT_ID", "1211149")
	t.Setenv("PAYHERE_MERCHANT_SECRET", "merchant-secret")
	cfg := fromViper(newViper())

	assert.False(t, cfg.PayHere.Sandbox)
	require.NoError(t, cfg.Validate())
}

func TestValidatePayHere(t *testing.T) {
	base := Config{DBDriver: "sqlite", JWTSecret: strings.Repeat("x", 40), JWTTTL: time.Hour}

	cfg := base
	cfg.PayHere = PayHere{MerchantID: "1211149"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYHERE_MERCHANT_SECRET")

	cfg.PayHere.MerchantSecret = "merchant-secret"
	assert.NoError(t, cfg.Validate())

	cfg.PayHere.Sandbox = true
	assert.NoError(t, cfg.Validate())
	cfg.Env = EnvProduction
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYHERE_SANDBOX")

	cfg = base
	cfg.Env = EnvProduction
	assert.NoError(t, cfg.Validate(), "payments stay disabled without credentials")
}
