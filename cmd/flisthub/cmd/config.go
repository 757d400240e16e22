package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/oneconcern/flisthub/pkg/config"
	"github.com/oneconcern/flisthub/pkg/dlogger"
	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/oneconcern/flisthub/pkg/metrics"
	"github.com/oneconcern/flisthub/pkg/metrics/exporters/influxdb"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	envPrefix   = "FLISTHUB"
	defaultBase = "/var/lib/flisthub"
)

var settings *viper.Viper

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	settings = viper.New()
	config.SetDefaults(settings, defaultBase)

	switch {
	case flisthubFlags.root.config != "":
		settings.SetConfigFile(flisthubFlags.root.config)
	case os.Getenv(envPrefix+"_CONFIG") != "":
		settings.SetConfigFile(os.Getenv(envPrefix + "_CONFIG"))
	default:
		settings.AddConfigPath(".")
		settings.AddConfigPath("$HOME/.flisthub")
		settings.AddConfigPath("/etc/flisthub")
		settings.SetConfigName("flisthub")
	}

	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	settings.AutomaticEnv() // read in environment variables that match

	if err := settings.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			wrapFatalln("read configuration", err)
		}
	}
}

func getLogger() *zap.Logger {
	l, err := dlogger.GetLogger(flisthubFlags.root.logLevel)
	if err != nil {
		wrapFatalln("logger", err)
		return zap.NewNop()
	}
	return l
}

// newHub builds a hub from the current settings.
//
// The returned func closes the hub and flushes logs.
func newHub() (*hub.Hub, func(), error) {
	cfg, err := config.Load(settings)
	if err != nil {
		return nil, nil, err
	}

	l := getLogger()
	if used := settings.ConfigFileUsed(); used != "" {
		l.Debug("using config file", zap.String("config", used))
	}

	closeMetrics, err := initMetrics(cfg.Metrics, l)
	if err != nil {
		return nil, nil, err
	}

	h, err := hub.New(cfg, hub.NewTool(cfg, l), hub.WithLogger(l))
	if err != nil {
		closeMetrics()
		return nil, nil, err
	}
	return h, func() {
		_ = h.Close()
		closeMetrics()
		_ = l.Sync()
	}, nil
}

// initMetrics exports metrics to influxdb when configured.
// The returned func flushes the last measurements.
func initMetrics(m config.Metrics, l *zap.Logger) (func(), error) {
	if m.InfluxDB == "" {
		return func() {}, nil
	}

	exp, err := influxdb.New(m.InfluxDB,
		influxdb.WithDatabase(m.Database),
		influxdb.WithTags(map[string]string{"service": "flisthub"}),
		influxdb.WithErrorHandler(func(err error) {
			l.Warn("metrics export failed", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}
	metrics.Init(metrics.WithExporter(exp), metrics.WithReportingPeriod(m.Period))
	l.Debug("exporting metrics", zap.String("database", m.Database))

	return func() {
		metrics.Flush()
		_ = exp.Close()
	}, nil
}

func withHub(name string, fn func(context.Context, *hub.Hub) error) {
	h, done, err := newHub()
	if err != nil {
		wrapFatalln("initialize hub", err)
		return
	}
	err = fn(context.Background(), h)
	done()
	if err != nil {
		wrapFatalln(name, err)
	}
}
