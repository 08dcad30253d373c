// Package config turns command-line flags and environment variables into a
// validated generator configuration.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/venue-telemetry-sim/core"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/observability"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/sim"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/sink"
	"github.com/signalsfoundry/venue-telemetry-sim/kb"
	"github.com/signalsfoundry/venue-telemetry-sim/model"
	"github.com/signalsfoundry/venue-telemetry-sim/timectrl"
)

// Sink kinds accepted by -sink.
const (
	SinkUpload  = "upload"
	SinkNATS    = "nats"
	SinkKafka   = "kafka"
	SinkJSON    = "json"
	SinkCSV     = "csv"
	SinkGeoJSON = "geojson"
)

// Error reports every problem found by Validate at once.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Config is the flat, flag-shaped configuration of one generator run.
type Config struct {
	Entities  int
	Kind      string
	Equipment string

	Period           time.Duration
	MinSpeedKph      float64
	MaxSpeedKph      float64
	MinConfidenceFt  float64
	MaxConfidenceFt  float64
	ModeConfidenceFt float64
	Weights          string
	Edge             string
	Headings         string

	Severities        string
	MinImpactInterval time.Duration
	MaxImpactInterval time.Duration

	// Coords selects xy or ll. Empty corners fall back to the default venue
	// of the chosen system. Metric corners are "x,y" in metres; geodetic
	// corners are "lat,lon".
	Coords     string
	BottomLeft string
	TopRight   string
	StartX     float64
	StartY     float64

	Date      string
	StartTime string
	StopTime  string
	Timezone  string
	Days      int
	Seed      int64
	Pacing    string

	Sink   string
	Output string

	Host          string
	APIBase       string
	APIKey        string
	EntityDataset string
	ImpactDataset string
	PollInterval  time.Duration
	PollMax       int
	PollMaxWait   time.Duration
	HTTPTimeout   time.Duration

	NATSURL      string
	NATSPrefix   string
	NATSStream   string
	KafkaBrokers string
	KafkaTopic   string
	ArchivePath  string

	MetricsAddr string

	TracingEnabled     bool
	TracingExporter    string
	TracingEndpoint    string
	TracingService     string
	TracingSampleRatio float64
}

// Default returns the warehouse defaults.
func Default() Config {
	motion := core.DefaultMotionConfig()
	impacts := core.DefaultImpactConfig()
	upload := sink.DefaultUploadConfig()
	nc := sink.DefaultNATSConfig()
	tracing := observability.DefaultTracingConfig()
	return Config{
		Entities:           100,
		Kind:               model.KindEmployee,
		Period:             motion.Period,
		MinSpeedKph:        motion.MinSpeedKph,
		MaxSpeedKph:        motion.MaxSpeedKph,
		MinConfidenceFt:    motion.MinConfidenceFt,
		MaxConfidenceFt:    motion.MaxConfidenceFt,
		ModeConfidenceFt:   motion.ModeConfidenceFt,
		Weights:            "8,23,23,23,23",
		Edge:               motion.Edge.String(),
		Headings:           "0,180,90,270",
		Severities:         "60:5.6 G / 2.5 G,30:6.4 G / 4.1 G,10:7.7 G / 6.3 G",
		MinImpactInterval:  impacts.MinInterval,
		MaxImpactInterval:  impacts.MaxInterval,
		Coords:             model.CoordsXY.String(),
		Date:               "2016-01-01",
		StartTime:          "06:00",
		StopTime:           "18:00",
		Timezone:           "UTC",
		Seed:               101,
		Pacing:             timectrl.RealTime.String(),
		Sink:               SinkUpload,
		Output:             "-",
		Host:               "dev-app.conduce.com",
		APIBase:            "/conduce/api",
		PollInterval:       upload.PollInterval,
		PollMax:            upload.MaxPolls,
		PollMaxWait:        upload.MaxWait,
		HTTPTimeout:        upload.Timeout,
		NATSURL:            nc.URL,
		NATSPrefix:         nc.SubjectPrefix,
		NATSStream:         nc.Stream,
		KafkaBrokers:       "localhost:9092",
		KafkaTopic:         "venue-telemetry",
		TracingExporter:    tracing.Exporter,
		TracingEndpoint:    tracing.Endpoint,
		TracingService:     tracing.ServiceName,
		TracingSampleRatio: tracing.SampleRatio,
	}
}

// Parse reads flags from args. Every flag defaults from an environment
// variable looked up with getenv, and from Default otherwise. The result is
// validated.
func Parse(args []string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	cfg := Default()
	env := envDefaults{getenv: getenv}

	fs := flag.NewFlagSet("generator", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.IntVar(&cfg.Entities, "entities", env.intOr("TELEMETRY_ENTITIES", cfg.Entities), "number of simulated entities")
	fs.StringVar(&cfg.Kind, "kind", env.strOr("TELEMETRY_KIND", cfg.Kind), "entity kind")
	fs.StringVar(&cfg.Equipment, "equipment", env.strOr("TELEMETRY_EQUIPMENT", cfg.Equipment), "optional equip attribute on every entity")

	fs.DurationVar(&cfg.Period, "period", env.durationOr("TELEMETRY_PERIOD", cfg.Period), "simulated time between ticks")
	fs.Float64Var(&cfg.MinSpeedKph, "min-speed", env.floatOr("TELEMETRY_MIN_SPEED_KPH", cfg.MinSpeedKph), "minimum speed in km/h")
	fs.Float64Var(&cfg.MaxSpeedKph, "max-speed", env.floatOr("TELEMETRY_MAX_SPEED_KPH", cfg.MaxSpeedKph), "maximum speed in km/h")
	fs.Float64Var(&cfg.MinConfidenceFt, "confidence-min", env.floatOr("TELEMETRY_CONFIDENCE_MIN_FT", cfg.MinConfidenceFt), "minimum confidence radius in feet")
	fs.Float64Var(&cfg.MaxConfidenceFt, "confidence-max", env.floatOr("TELEMETRY_CONFIDENCE_MAX_FT", cfg.MaxConfidenceFt), "maximum confidence radius in feet")
	fs.Float64Var(&cfg.ModeConfidenceFt, "confidence-mode", env.floatOr("TELEMETRY_CONFIDENCE_MODE_FT", cfg.ModeConfidenceFt), "most likely confidence radius in feet")
	fs.StringVar(&cfg.Weights, "weights", env.strOr("TELEMETRY_WEIGHTS", cfg.Weights), "direction weights none,up,down,left,right")
	fs.StringVar(&cfg.Edge, "edge", env.strOr("TELEMETRY_EDGE", cfg.Edge), "boundary policy: clamp or bounce")
	fs.StringVar(&cfg.Headings, "headings", env.strOr("TELEMETRY_HEADINGS", cfg.Headings), "heading codes up,down,left,right")

	fs.StringVar(&cfg.Severities, "severities", env.strOr("TELEMETRY_SEVERITIES", cfg.Severities), "impact severities as weight:intensity,...")
	fs.DurationVar(&cfg.MinImpactInterval, "impact-min", env.durationOr("TELEMETRY_IMPACT_MIN", cfg.MinImpactInterval), "minimum time between impacts")
	fs.DurationVar(&cfg.MaxImpactInterval, "impact-max", env.durationOr("TELEMETRY_IMPACT_MAX", cfg.MaxImpactInterval), "maximum time between impacts")

	fs.StringVar(&cfg.Coords, "coords", env.strOr("TELEMETRY_COORDS", cfg.Coords), "output coordinates: xy or ll")
	fs.StringVar(&cfg.BottomLeft, "bottom-left", env.strOr("TELEMETRY_BOTTOM_LEFT", cfg.BottomLeft), "venue bottom-left corner (x,y metres or lat,lon)")
	fs.StringVar(&cfg.TopRight, "top-right", env.strOr("TELEMETRY_TOP_RIGHT", cfg.TopRight), "venue top-right corner (x,y metres or lat,lon)")
	fs.Float64Var(&cfg.StartX, "start-x", env.floatOr("TELEMETRY_START_X", cfg.StartX), "initial x position in percent of the venue")
	fs.Float64Var(&cfg.StartY, "start-y", env.floatOr("TELEMETRY_START_Y", cfg.StartY), "initial y position in percent of the venue")

	fs.StringVar(&cfg.Date, "date", env.strOr("TELEMETRY_DATE", cfg.Date), "first simulated day (YYYY-MM-DD)")
	fs.StringVar(&cfg.StartTime, "start", env.strOr("TELEMETRY_START", cfg.StartTime), "daily start time (HH:MM[:SS])")
	fs.StringVar(&cfg.StopTime, "stop", env.strOr("TELEMETRY_STOP", cfg.StopTime), "daily stop time (HH:MM[:SS])")
	fs.StringVar(&cfg.Timezone, "tz", env.strOr("TELEMETRY_TZ", cfg.Timezone), "IANA time zone of the daily window")
	fs.IntVar(&cfg.Days, "days", env.intOr("TELEMETRY_DAYS", cfg.Days), "number of days to simulate (0 = the whole start month)")
	fs.Int64Var(&cfg.Seed, "seed", env.int64Or("TELEMETRY_SEED", cfg.Seed), "random seed (0 = time based)")
	fs.StringVar(&cfg.Pacing, "pacing", env.strOr("TELEMETRY_PACING", cfg.Pacing), "realtime or accelerated")

	fs.StringVar(&cfg.Sink, "sink", env.strOr("TELEMETRY_SINK", cfg.Sink), "upload, nats, kafka, json, csv or geojson")
	fs.StringVar(&cfg.Output, "output", env.strOr("TELEMETRY_OUTPUT", cfg.Output), "output file for json, csv and geojson sinks (- = stdout)")

	fs.StringVar(&cfg.Host, "host", env.strOr("TELEMETRY_HOST", cfg.Host), "ingestion API host")
	fs.StringVar(&cfg.APIBase, "api-base", env.strOr("TELEMETRY_API_BASE", cfg.APIBase), "ingestion API base path")
	fs.StringVar(&cfg.APIKey, "api-key", env.strOr("TELEMETRY_API_KEY", cfg.APIKey), "ingestion API key")
	fs.StringVar(&cfg.EntityDataset, "entity-dataset", env.strOr("TELEMETRY_ENTITY_DATASET", cfg.EntityDataset), "dataset receiving entity batches")
	fs.StringVar(&cfg.ImpactDataset, "impact-dataset", env.strOr("TELEMETRY_IMPACT_DATASET", cfg.ImpactDataset), "optional dataset receiving impacts")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", env.durationOr("TELEMETRY_POLL_INTERVAL", cfg.PollInterval), "delay between job status polls")
	fs.IntVar(&cfg.PollMax, "poll-max", env.intOr("TELEMETRY_POLL_MAX", cfg.PollMax), "maximum job status polls per upload")
	fs.DurationVar(&cfg.PollMaxWait, "poll-max-wait", env.durationOr("TELEMETRY_POLL_MAX_WAIT", cfg.PollMaxWait), "maximum time to wait for a job")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", env.durationOr("TELEMETRY_HTTP_TIMEOUT", cfg.HTTPTimeout), "timeout of a single HTTP request")

	fs.StringVar(&cfg.NATSURL, "nats-url", env.strOr("TELEMETRY_NATS_URL", cfg.NATSURL), "NATS server URL")
	fs.StringVar(&cfg.NATSPrefix, "nats-prefix", env.strOr("TELEMETRY_NATS_PREFIX", cfg.NATSPrefix), "NATS subject prefix")
	fs.StringVar(&cfg.NATSStream, "nats-stream", env.strOr("TELEMETRY_NATS_STREAM", cfg.NATSStream), "JetStream stream name")
	fs.StringVar(&cfg.KafkaBrokers, "kafka-brokers", env.strOr("TELEMETRY_KAFKA_BROKERS", cfg.KafkaBrokers), "comma separated Kafka brokers")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", env.strOr("TELEMETRY_KAFKA_TOPIC", cfg.KafkaTopic), "Kafka topic")
	fs.StringVar(&cfg.ArchivePath, "archive", env.strOr("TELEMETRY_ARCHIVE", cfg.ArchivePath), "optional SQLite file archiving every batch")

	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", env.strOr("TELEMETRY_METRICS_ADDR", cfg.MetricsAddr), "HTTP address for Prometheus /metrics (empty = disabled)")

	fs.BoolVar(&cfg.TracingEnabled, "tracing", env.boolOr("TELEMETRY_TRACING_ENABLED", cfg.TracingEnabled), "export a span per emitted batch and job poll")
	fs.StringVar(&cfg.TracingExporter, "tracing-exporter", env.strOr("TELEMETRY_TRACING_EXPORTER", cfg.TracingExporter), "span exporter: stdout (stderr) or otlp")
	fs.StringVar(&cfg.TracingEndpoint, "tracing-endpoint", env.strOr("TELEMETRY_OTLP_ENDPOINT", cfg.TracingEndpoint), "OTLP gRPC collector address")
	fs.StringVar(&cfg.TracingService, "tracing-service", env.strOr("TELEMETRY_TRACING_SERVICE_NAME", cfg.TracingService), "service.name resource attribute")
	fs.Float64Var(&cfg.TracingSampleRatio, "tracing-sample-ratio", env.floatOr("TELEMETRY_TRACING_SAMPLE_RATIO", cfg.TracingSampleRatio), "fraction of root spans sampled")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stderr)
			fs.PrintDefaults()
		}
		return Config{}, err
	}
	if len(env.problems) > 0 {
		return Config{}, &Error{Problems: env.problems}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every setting and reports all problems together.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Entities < 0 {
		add("entities must not be negative, got %d", c.Entities)
	}
	if _, err := c.Motion(); err != nil {
		add("%v", err)
	}
	if _, err := c.ImpactConfig(); err != nil {
		add("%v", err)
	}
	if _, err := c.Venue(); err != nil {
		add("%v", err)
	}
	if c.StartX < 0 || c.StartX > 100 || c.StartY < 0 || c.StartY > 100 {
		add("start position (%v, %v) must be within 0..100 percent", c.StartX, c.StartY)
	}
	if _, err := c.Window(); err != nil {
		add("%v", err)
	}
	if c.Days < 0 {
		add("days must not be negative, got %d", c.Days)
	}
	if _, err := timectrl.ParseMode(c.Pacing); err != nil {
		add("%v", err)
	}
	if err := c.Tracing().Validate(); err != nil {
		add("%v", err)
	}

	switch c.Sink {
	case SinkUpload:
		if c.APIKey == "" {
			add("api key is required for the upload sink")
		}
		if c.Host == "" {
			add("host is required for the upload sink")
		}
		if c.EntityDataset == "" {
			add("entity dataset is required for the upload sink")
		}
		if c.PollInterval <= 0 || c.PollMax <= 0 {
			add("poll interval and poll max must be positive")
		}
	case SinkNATS:
		if c.NATSURL == "" {
			add("nats url is required for the nats sink")
		}
	case SinkKafka:
		if len(c.kafkaBrokers()) == 0 || c.KafkaTopic == "" {
			add("kafka brokers and topic are required for the kafka sink")
		}
	case SinkJSON, SinkCSV, SinkGeoJSON:
	default:
		add("unknown sink %q", c.Sink)
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

// Motion builds the movement parameters.
func (c Config) Motion() (core.MotionConfig, error) {
	m := core.DefaultMotionConfig()
	m.Period = c.Period
	m.MinSpeedKph = c.MinSpeedKph
	m.MaxSpeedKph = c.MaxSpeedKph
	m.MinConfidenceFt = c.MinConfidenceFt
	m.MaxConfidenceFt = c.MaxConfidenceFt
	m.ModeConfidenceFt = c.ModeConfidenceFt

	var err error
	if m.Weights, err = ParseWeights(c.Weights); err != nil {
		return m, err
	}
	if m.Headings, err = ParseHeadings(c.Headings); err != nil {
		return m, err
	}
	if m.Edge, err = core.ParseEdgePolicy(c.Edge); err != nil {
		return m, err
	}
	if c.ModeConfidenceFt < c.MinConfidenceFt || c.ModeConfidenceFt > c.MaxConfidenceFt {
		return m, fmt.Errorf("confidence mode %v outside [%v, %v]", c.ModeConfidenceFt, c.MinConfidenceFt, c.MaxConfidenceFt)
	}
	return m, m.Validate()
}

// ImpactConfig builds the impact process parameters.
func (c Config) ImpactConfig() (core.ImpactConfig, error) {
	severities, err := core.ParseSeverities(c.Severities)
	if err != nil {
		return core.ImpactConfig{}, err
	}
	ic := core.ImpactConfig{
		MinInterval: c.MinImpactInterval,
		MaxInterval: c.MaxImpactInterval,
		Severities:  severities,
	}
	if ic.MinInterval < time.Second || ic.MaxInterval < ic.MinInterval {
		return ic, fmt.Errorf("invalid impact interval [%s, %s]", ic.MinInterval, ic.MaxInterval)
	}
	return ic, nil
}

// Venue builds the venue rectangle, falling back to the default corners of
// the chosen coordinate system.
func (c Config) Venue() (model.Venue, error) {
	system, err := model.ParseCoordSystem(c.Coords)
	if err != nil {
		return model.Venue{}, err
	}
	v := model.DefaultMetricVenue()
	if system == model.CoordsLatLong {
		v = model.DefaultGeodeticVenue()
	}
	if c.BottomLeft != "" {
		if v.BottomLeft, err = parseCorner(c.BottomLeft, system); err != nil {
			return model.Venue{}, fmt.Errorf("bottom-left: %w", err)
		}
	}
	if c.TopRight != "" {
		if v.TopRight, err = parseCorner(c.TopRight, system); err != nil {
			return model.Venue{}, fmt.Errorf("top-right: %w", err)
		}
	}
	return v, v.Validate()
}

// Window parses the first day's time window in the configured zone.
func (c Config) Window() (timectrl.Window, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return timectrl.Window{}, fmt.Errorf("time zone %q: %w", c.Timezone, err)
	}
	return timectrl.ParseWindow(c.Date, c.StartTime, c.StopTime, loc)
}

// Sim builds the run configuration for sim.NewEngine.
func (c Config) Sim() (sim.Config, error) {
	motion, err := c.Motion()
	if err != nil {
		return sim.Config{}, err
	}
	impacts, err := c.ImpactConfig()
	if err != nil {
		return sim.Config{}, err
	}
	venue, err := c.Venue()
	if err != nil {
		return sim.Config{}, err
	}
	window, err := c.Window()
	if err != nil {
		return sim.Config{}, err
	}
	pacing, err := timectrl.ParseMode(c.Pacing)
	if err != nil {
		return sim.Config{}, err
	}
	return sim.Config{
		Population: kb.Config{
			Count:     c.Entities,
			Kind:      c.Kind,
			Equipment: c.Equipment,
			StartX:    c.StartX,
			StartY:    c.StartY,
		},
		Venue:   venue,
		Motion:  motion,
		Impacts: impacts,
		Window:  window,
		Days:    c.Days,
		Pacing:  pacing,
		Seed:    c.Seed,
	}, nil
}

// BaseURL is the ingestion API root, e.g. https://dev-app.conduce.com/conduce/api.
func (c Config) BaseURL() string {
	host := strings.TrimSuffix(c.Host, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return host + "/" + strings.Trim(c.APIBase, "/")
}

// Upload builds the ingestion API client configuration.
func (c Config) Upload() sink.UploadConfig {
	return sink.UploadConfig{
		BaseURL:      c.BaseURL(),
		APIKey:       c.APIKey,
		PollInterval: c.PollInterval,
		MaxPolls:     c.PollMax,
		MaxWait:      c.PollMaxWait,
		Timeout:      c.HTTPTimeout,
	}
}

// NATS builds the JetStream sink configuration.
func (c Config) NATS() sink.NATSConfig {
	nc := sink.DefaultNATSConfig()
	nc.URL = c.NATSURL
	nc.SubjectPrefix = c.NATSPrefix
	nc.Stream = c.NATSStream
	return nc
}

// Tracing builds the span exporter configuration.
func (c Config) Tracing() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.TracingEnabled,
		Exporter:    strings.ToLower(strings.TrimSpace(c.TracingExporter)),
		Endpoint:    c.TracingEndpoint,
		ServiceName: c.TracingService,
		SampleRatio: c.TracingSampleRatio,
	}
}

// Kafka builds the Kafka sink configuration.
func (c Config) Kafka() sink.KafkaConfig {
	return sink.KafkaConfig{Brokers: c.kafkaBrokers(), Topic: c.KafkaTopic}
}

// Archive returns the SQLite archive configuration, or false when archiving
// is off.
func (c Config) Archive() (sink.SQLiteConfig, bool) {
	if c.ArchivePath == "" {
		return sink.SQLiteConfig{}, false
	}
	sc := sink.DefaultSQLiteConfig()
	sc.Path = c.ArchivePath
	return sc, true
}

// Datasets returns the entity and impact dataset names. Outside the upload
// sink the entity dataset defaults to "entities", and "impacts" is used for
// impacts; the upload sink only emits impacts when a dataset is named.
func (c Config) Datasets() (entities, impacts string) {
	entities, impacts = c.EntityDataset, c.ImpactDataset
	if c.Sink != SinkUpload {
		if entities == "" {
			entities = "entities"
		}
		if impacts == "" {
			impacts = "impacts"
		}
	}
	return entities, impacts
}

func (c Config) kafkaBrokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// ParseWeights reads five comma separated weights in none,up,down,left,right
// order.
func ParseWeights(s string) (core.DirectionWeights, error) {
	v, err := parseFloats(s, 5)
	if err != nil {
		return core.DirectionWeights{}, fmt.Errorf("direction weights: %w", err)
	}
	return core.DirectionWeights{None: v[0], Up: v[1], Down: v[2], Left: v[3], Right: v[4]}, nil
}

// ParseHeadings reads four comma separated integer codes in up,down,left,right
// order.
func ParseHeadings(s string) (core.Headings, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.Headings{}, fmt.Errorf("headings: want 4 values, got %d", len(parts))
	}
	var v [4]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return core.Headings{}, fmt.Errorf("headings: %w", err)
		}
		v[i] = n
	}
	return core.Headings{Up: v[0], Down: v[1], Left: v[2], Right: v[3]}, nil
}

func parseCorner(s string, system model.CoordSystem) (model.Corner, error) {
	v, err := parseFloats(s, 2)
	if err != nil {
		return model.Corner{}, err
	}
	if system == model.CoordsLatLong {
		return model.Corner{X: v[1], Y: v[0]}, nil
	}
	return model.Corner{X: v[0], Y: v[1]}, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma separated values, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// envDefaults resolves flag defaults from the environment and remembers
// values it could not parse.
type envDefaults struct {
	getenv   func(string) string
	problems []string
}

func (e *envDefaults) strOr(key, def string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return def
}

func (e *envDefaults) boolOr(key string, def bool) bool {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *envDefaults) intOr(key string, def int) int {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envDefaults) int64Or(key string, def int64) int64 {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envDefaults) floatOr(key string, def float64) float64 {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return f
}

func (e *envDefaults) durationOr(key string, def time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

func (e *envDefaults) fail(key, value string, err error) {
	var num *strconv.NumError
	if errors.As(err, &num) {
		err = num.Err
	}
	e.problems = append(e.problems, fmt.Sprintf("%s=%q: %v", key, value, err))
}
