package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/obskit/metrics/common"
	"github.com/obskit/metrics/provider"
)

var VERSION = "unknown"

var logs = common.NewLogs()
var metrics = common.NewMetrics()
var stdout *provider.Stdout

type RootOptions struct {
	Logs    []string
	Metrics []string
}

var rootOptions = RootOptions{

	Logs:    []string{"stdout"},
	Metrics: []string{"prometheus"},
}

var stdoutOptions = provider.StdoutOptions{

	Format:          "text",
	Level:           "info",
	Template:        "{{.file}} {{.msg}}",
	TimestampFormat: time.RFC3339Nano,
	TextColors:      true,
}

var prometheusOptions = provider.PrometheusOptions{

	URL:    "/metrics",
	Port:   8080,
	Prefix: "obskit",
}

var victoriaMetricsOptions = provider.VictoriaMetricsOptions{

	URL:    "/metrics",
	Port:   8081,
	Prefix: "obskit",
}

var datadogOptions = provider.DataDogOptions{
	ServiceName: "",
	Environment: "none",
	Tags:        "",
}

var datadogMeterOptions = provider.DataDogMeterOptions{
	AgentHost: "",
	AgentPort: 8125,
	Prefix:    "obskit",
}

var newrelicMeterOptions = provider.NewRelicMeterOptions{
	Endpoint: "",
	Prefix:   "obskit",
}

func interceptSyscall() {

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGKILL)
	go func() {
		<-c
		logs.Info("Exiting...")
		os.Exit(1)
	}()
}

func Execute() {

	rootCmd := &cobra.Command{
		Use:   "obskit",
		Short: "Obskit",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {

			stdoutOptions.Version = VERSION
			stdout = provider.NewStdout(stdoutOptions)
			stdout.SetCallerOffset(2)
			if common.HasElem(rootOptions.Logs, "stdout") {
				logs.Register(stdout)
			}

			logs.Info("Booting...")

			prometheusOptions.Version = VERSION
			if common.HasElem(rootOptions.Metrics, "prometheus") {
				prometheus, err := provider.NewPrometheusMeter(prometheusOptions, logs, stdout)
				if err != nil {
					logs.Panic(err)
				}
				if err := prometheus.Start(); err != nil {
					logs.Error(err)
				}
				metrics.Register(prometheus)
			}

			victoriaMetricsOptions.Version = VERSION
			if common.HasElem(rootOptions.Metrics, "victoriametrics") {
				victoria, err := provider.NewVictoriaMetricsMeter(victoriaMetricsOptions, logs, stdout)
				if err != nil {
					logs.Panic(err)
				}
				if err := victoria.Start(); err != nil {
					logs.Error(err)
				}
				metrics.Register(victoria)
			}

			datadogMeterOptions.DataDogOptions = datadogOptions
			datadogMeterOptions.Version = VERSION
			if common.HasElem(rootOptions.Metrics, "datadog") {
				if datadog := provider.NewDataDogMeter(datadogMeterOptions, logs, stdout); datadog != nil {
					metrics.Register(datadog)
				}
			}

			newrelicMeterOptions.Version = VERSION
			if common.HasElem(rootOptions.Metrics, "newrelic") {
				if newrelic := provider.NewNewRelicMeter(newrelicMeterOptions, logs, stdout); newrelic != nil {
					metrics.Register(newrelic)
				}
			}
		},
		Run: func(cmd *cobra.Command, args []string) {

			if err := metrics.DefineCounter("calls", "Calls counter", "iteration"); err != nil {
				logs.Panic(err)
			}
			if err := metrics.DefineGauge("temperature", "Sample gauge"); err != nil {
				logs.Panic(err)
			}
			if err := metrics.DefineHistogram("latency", "Sample latency", []float64{0.1, 0.5, 1.0, 5.0}); err != nil {
				logs.Panic(err)
			}

			for i := 0; i < 10; i++ {

				time.Sleep(time.Duration(100*i) * time.Millisecond)

				labels := common.Labels{"iteration": strconv.Itoa(i)}
				if err := metrics.IncrementCounter("calls", 1, labels); err != nil {
					logs.Error(err)
				}
				if err := metrics.IncrementGauge("temperature", float64(i), nil); err != nil {
					logs.Error(err)
				}
				if err := metrics.RecordHistogram("latency", float64(i)*0.1, nil); err != nil {
					logs.Error(err)
				}
				logs.Debug("Iteration %d done", i)
			}

			logs.Info("Wait until it will be interrupted...")
			select {}
		},
	}

	flags := rootCmd.PersistentFlags()

	flags.StringSliceVar(&rootOptions.Logs, "logs", rootOptions.Logs, "Log providers: stdout")
	flags.StringSliceVar(&rootOptions.Metrics, "metrics", rootOptions.Metrics, "Metric providers: prometheus, victoriametrics, datadog, newrelic")

	flags.StringVar(&stdoutOptions.Format, "stdout-format", stdoutOptions.Format, "Stdout format: json, text, template")
	flags.StringVar(&stdoutOptions.Level, "stdout-level", stdoutOptions.Level, "Stdout level: info, warn, error, debug, panic")
	flags.StringVar(&stdoutOptions.Template, "stdout-template", stdoutOptions.Template, "Stdout template")
	flags.StringVar(&stdoutOptions.TimestampFormat, "stdout-timestamp-format", stdoutOptions.TimestampFormat, "Stdout timestamp format")
	flags.BoolVar(&stdoutOptions.TextColors, "stdout-text-colors", stdoutOptions.TextColors, "Stdout text colors")

	flags.StringVar(&prometheusOptions.URL, "prometheus-url", prometheusOptions.URL, "Prometheus endpoint url")
	flags.IntVar(&prometheusOptions.Port, "prometheus-port", prometheusOptions.Port, "Prometheus endpoint port")
	flags.StringVar(&prometheusOptions.Prefix, "prometheus-prefix", prometheusOptions.Prefix, "Prometheus prefix")

	flags.StringVar(&victoriaMetricsOptions.URL, "victoriametrics-url", victoriaMetricsOptions.URL, "VictoriaMetrics endpoint url")
	flags.IntVar(&victoriaMetricsOptions.Port, "victoriametrics-port", victoriaMetricsOptions.Port, "VictoriaMetrics endpoint port")
	flags.StringVar(&victoriaMetricsOptions.Prefix, "victoriametrics-prefix", victoriaMetricsOptions.Prefix, "VictoriaMetrics prefix")

	flags.StringVar(&datadogOptions.ServiceName, "datadog-service-name", datadogOptions.ServiceName, "DataDog service name")
	flags.StringVar(&datadogOptions.Environment, "datadog-environment", datadogOptions.Environment, "DataDog environment")
	flags.StringVar(&datadogOptions.Tags, "datadog-tags", datadogOptions.Tags, "DataDog tags, comma separated list of name=value")

	flags.StringVar(&datadogMeterOptions.AgentHost, "datadog-meter-host", datadogMeterOptions.AgentHost, "DataDog agent host")
	flags.IntVar(&datadogMeterOptions.AgentPort, "datadog-meter-port", datadogMeterOptions.AgentPort, "DataDog agent port")
	flags.StringVar(&datadogMeterOptions.Prefix, "datadog-meter-prefix", datadogMeterOptions.Prefix, "DataDog meter prefix")

	flags.StringVar(&newrelicMeterOptions.ApiKey, "newrelic-api-key", newrelicMeterOptions.ApiKey, "NewRelic API key")
	flags.StringVar(&newrelicMeterOptions.ServiceName, "newrelic-service-name", newrelicMeterOptions.ServiceName, "NewRelic service name")
	flags.StringVar(&newrelicMeterOptions.Environment, "newrelic-environment", newrelicMeterOptions.Environment, "NewRelic environment")
	flags.StringVar(&newrelicMeterOptions.Endpoint, "newrelic-endpoint", newrelicMeterOptions.Endpoint, "NewRelic metrics endpoint")
	flags.StringVar(&newrelicMeterOptions.Prefix, "newrelic-prefix", newrelicMeterOptions.Prefix, "NewRelic prefix")
	flags.StringVar(&newrelicMeterOptions.Attributes, "newrelic-attributes", newrelicMeterOptions.Attributes, "NewRelic attributes, comma separated list of name=value")

	interceptSyscall()

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(VERSION)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		logs.Error(err)
		os.Exit(1)
	}
}
