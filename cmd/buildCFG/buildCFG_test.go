package buildCFG

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopLog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), EventService, nopLog())
	require.NoError(t, err)

	assert.Equal(t, "8082", BuildServerConfig(cfg, nopLog()).Port)

	db, err := BuildDBConfig(cfg, nopLog())
	require.NoError(t, err)
	assert.Equal(t, DriverPG, db.Driver)
	assert.Contains(t, db.MasterDSN, "/event?")
	assert.Equal(t, "migrations/event", db.MigrationsDir)

	kind, err := BuildBrokerKind(cfg)
	require.NoError(t, err)
	assert.Equal(t, BrokerRMQ, kind)

	rc, err := BuildResilienceConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, rc.Timeout)
	assert.Equal(t, 2, rc.Retry.MaxRetries)
	assert.Equal(t, 10*time.Second, rc.Breaker.OpenTimeout)

	assert.Equal(t, EventService, BuildTelemetryConfig(cfg).ServiceName)
	assert.False(t, BuildMailerConfig(cfg).Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: ":9090"
database:
  driver: memory
broker:
  kind: kafka
kafka:
  brokers: ["k1:9092", "k2:9092"]
  topic: bookings
resilience:
  timeout: 750ms
  breaker:
    consecutive_failures: 2
redis:
  enabled: true
  lock_ttl: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("ROOMBOOKER_SERVICES_USER_URL", "http://users.internal")

	cfg, err := Load(path, BookingService, nopLog())
	require.NoError(t, err)

	assert.Equal(t, "9090", BuildServerConfig(cfg, nopLog()).Port)

	db, err := BuildDBConfig(cfg, nopLog())
	require.NoError(t, err)
	assert.Equal(t, DriverMem, db.Driver)

	kind, err := BuildBrokerKind(cfg)
	require.NoError(t, err)
	assert.Equal(t, BrokerKafka, kind)

	kc, err := BuildKafkaConfig(cfg, nopLog())
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, kc.Brokers)
	assert.Equal(t, "bookings", kc.Topic)
	assert.Equal(t, "event-registrar", kc.GroupID)

	rc, err := BuildResilienceConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, rc.Timeout)
	assert.Equal(t, uint32(2), rc.Breaker.ConsecutiveFailures)
	assert.Equal(t, uint32(1), rc.Breaker.MaxRequests)

	redis := BuildRedisConfig(cfg)
	assert.True(t, redis.Enabled)
	assert.Equal(t, 5*time.Second, redis.LockTTL)

	services, httpCfg := BuildServicesConfig(cfg)
	assert.Equal(t, "http://users.internal", services.UserURL)
	assert.Equal(t, 3*time.Second, httpCfg.ReadTimeout)
}

func TestBuildDBConfig_UnknownDriver(t *testing.T) {
	t.Setenv("ROOMBOOKER_DATABASE_DRIVER", "sqlite")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), ApprovalService, nopLog())
	require.NoError(t, err)

	_, err = BuildDBConfig(cfg, nopLog())
	assert.Error(t, err)
}

func TestLoad_BrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [port"), 0o600))

	_, err := Load(path, BookingService, nopLog())
	assert.Error(t, err, "only a missing file is tolerated")
}
