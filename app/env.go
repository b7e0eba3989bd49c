package app

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// Environment defines the interface that all environment configurations must implement.
// Embed BaseEnvironment in your struct to satisfy this interface.
type Environment interface {
	port() int
	serviceName() string
	readinessCheckPath() string
	logLevel() zapcore.Level
	otelExporter() string
	requestTimeout() time.Duration
	extensionTypes() map[string]string
	recordSink() string
	recordQueueURL() string
}

// BaseEnvironment contains the environment variables every provider service reads.
// Embed this in your custom environment struct.
type BaseEnvironment struct {
	Port               int           `env:"BP_PORT,required"`
	ServiceName        string        `env:"BP_SERVICE_NAME,required"`
	ReadinessCheckPath string        `env:"BP_READINESS_CHECK_PATH" envDefault:"/health"`
	LogLevel           zapcore.Level `env:"BP_LOG_LEVEL" envDefault:"info"`
	OtelExporter       string        `env:"BP_OTEL_EXPORTER" envDefault:"stdout"`
	RequestTimeout     time.Duration `env:"BP_REQUEST_TIMEOUT" envDefault:"30s"`
	// ExtensionTypes maps url path extensions to the media type they select, as a comma
	// separated list of ext=type pairs.
	ExtensionTypes map[string]string `env:"BP_EXTENSION_TYPES" envKeyValSeparator:"=" envDefault:"html=text/html,json=application/json,txt=text/plain"` //nolint:lll
	// RecordSink selects where access records go: "log" writes them to the zap logger, "sqs"
	// sends them to RecordQueueURL for an external formatter.
	RecordSink     string `env:"BP_RECORD_SINK" envDefault:"log"`
	RecordQueueURL string `env:"BP_RECORD_QUEUE_URL"`
}

func (e BaseEnvironment) port() int {
	return e.Port
}

func (e BaseEnvironment) serviceName() string {
	return e.ServiceName
}

func (e BaseEnvironment) readinessCheckPath() string {
	return e.ReadinessCheckPath
}

func (e BaseEnvironment) logLevel() zapcore.Level {
	return e.LogLevel
}

func (e BaseEnvironment) otelExporter() string {
	return e.OtelExporter
}

func (e BaseEnvironment) requestTimeout() time.Duration {
	return e.RequestTimeout
}

func (e BaseEnvironment) extensionTypes() map[string]string {
	return e.ExtensionTypes
}

func (e BaseEnvironment) recordSink() string {
	return e.RecordSink
}

func (e BaseEnvironment) recordQueueURL() string {
	return e.RecordQueueURL
}

var _ Environment = BaseEnvironment{}

// ParseEnv parses environment variables into the given Environment type.
func ParseEnv[E Environment]() func() (E, error) {
	return func() (e E, err error) {
		if err := env.Parse(&e); err != nil {
			return e, errors.Wrap(err, "failed to parse environment")
		}
		return e, nil
	}
}
