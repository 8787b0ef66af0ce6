// Package updater wires the firmware update pipeline into an L1 controller.
package updater

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/golang/glog"
	"gopkg.in/ini.v1"

	fx "github.com/robotalks/robofw/pkg/framework"
	"github.com/robotalks/robofw/pkg/l1"
	"github.com/robotalks/robofw/pkg/ota"
	"github.com/robotalks/robofw/pkg/status"
	"github.com/robotalks/robofw/pkg/system"
	"github.com/robotalks/robofw/pkg/target/file"
	"github.com/robotalks/robofw/pkg/target/gcs"
	"github.com/robotalks/robofw/pkg/target/memory"
)

// ConfigSection is the section of the config file.
const ConfigSection = "ota"

// Config defines the options of the update controller.
type Config struct {
	OTA ota.Config
	// Target is the URL of the update target:
	// file:///dir[?name=firmware.bin], mem://[?capacity=N] or gs://bucket/path.
	Target string
	// Credentials is the credentials file for gs:// targets.
	Credentials string
	// RedisAddr mirrors statuses into redis if not empty.
	RedisAddr string
	// RestartCommand is run after a successful update.
	RestartCommand string
	// DryRun skips the restart.
	DryRun bool
	// MemoryBudget is the memory budget for the heap preflight check,
	// the runtime memory limit if zero.
	MemoryBudget uint64
	// ConfigFile is an optional INI file.
	ConfigFile string
}

var defaultConfig = Config{
	OTA:            ota.DefaultConfig(),
	Target:         "file:///var/lib/robofw",
	RestartCommand: strings.Join(system.DefaultRebootCommand, " "),
}

func init() {
	if val := os.Getenv("ROBO_OTA_TARGET"); val != "" {
		defaultConfig.Target = val
	}
	if val := os.Getenv("ROBO_OTA_REDIS"); val != "" {
		defaultConfig.RedisAddr = val
	}
	if val := os.Getenv("ROBO_OTA_CONFIG"); val != "" {
		defaultConfig.ConfigFile = val
	}
	if val := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); val != "" {
		defaultConfig.Credentials = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	c := &defaultConfig
	flag.IntVar(&c.OTA.BufferSize, "ota-buffer-size", c.OTA.BufferSize, "Staging buffer size in bytes")
	flag.Uint64Var(&c.OTA.HeapOverhead, "ota-heap-overhead", c.OTA.HeapOverhead, "Heap kept free on top of staging buffers")
	flag.DurationVar(&c.OTA.Timeout, "ota-timeout", c.OTA.Timeout, "Abort update without chunks for this long")
	flag.DurationVar(&c.OTA.PollInterval, "ota-poll-interval", c.OTA.PollInterval, "Yield interval of polling waits")
	flag.DurationVar(&c.OTA.LockWait, "ota-lock-wait", c.OTA.LockWait, "Max wait for the staging lock by the flash worker")
	flag.StringVar(&c.OTA.Wait, "ota-wait", c.OTA.Wait, "Wait mode: poll or notify")
	flag.DurationVar(&c.OTA.RestartDelay, "ota-restart-delay", c.OTA.RestartDelay, "Delay before restart after update")
	flag.StringVar(&c.Target, "ota-target", c.Target, "Update target URL: file:///dir, mem:// or gs://bucket/path")
	flag.StringVar(&c.Credentials, "ota-credentials", c.Credentials, "Credentials file for gs:// targets")
	flag.StringVar(&c.RedisAddr, "ota-redis", c.RedisAddr, "Redis address to mirror update status, empty to disable")
	flag.StringVar(&c.RestartCommand, "ota-restart-command", c.RestartCommand, "Command to restart after update")
	flag.BoolVar(&c.DryRun, "ota-dry-run", c.DryRun, "Do not restart after update")
	flag.Uint64Var(&c.MemoryBudget, "ota-memory-budget", c.MemoryBudget, "Memory budget for the heap check, 0 for GOMEMLIMIT")
	flag.StringVar(&c.ConfigFile, "ota-config", c.ConfigFile, "INI config file, section [ota]")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile loads the [ota] section of an INI file. Keys are the flag names
// without the "ota-" prefix. Flags set on the command line take precedence.
func (c *Config) LoadFile(filename string) error {
	f, err := ini.Load(filename)
	if err != nil {
		return fmt.Errorf("load %s: %w", filename, err)
	}
	explicit := make(map[string]bool)
	if flag.Parsed() {
		flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	}
	return c.apply(f.Section(ConfigSection), explicit)
}

func (c *Config) apply(sec *ini.Section, explicit map[string]bool) error {
	var err error
	has := func(name string) bool {
		return err == nil && sec.HasKey(name) && !explicit["ota-"+name]
	}
	key := func(name string) *ini.Key {
		return sec.Key(name)
	}
	if has("buffer-size") {
		c.OTA.BufferSize, err = key("buffer-size").Int()
	}
	if has("heap-overhead") {
		c.OTA.HeapOverhead, err = key("heap-overhead").Uint64()
	}
	if has("timeout") {
		c.OTA.Timeout, err = key("timeout").Duration()
	}
	if has("poll-interval") {
		c.OTA.PollInterval, err = key("poll-interval").Duration()
	}
	if has("lock-wait") {
		c.OTA.LockWait, err = key("lock-wait").Duration()
	}
	if has("wait") {
		c.OTA.Wait = key("wait").String()
	}
	if has("restart-delay") {
		c.OTA.RestartDelay, err = key("restart-delay").Duration()
	}
	if has("target") {
		c.Target = key("target").String()
	}
	if has("credentials") {
		c.Credentials = key("credentials").String()
	}
	if has("redis") {
		c.RedisAddr = key("redis").String()
	}
	if has("restart-command") {
		c.RestartCommand = key("restart-command").String()
	}
	if has("dry-run") {
		c.DryRun, err = key("dry-run").Bool()
	}
	if has("memory-budget") {
		c.MemoryBudget, err = key("memory-budget").Uint64()
	}
	if err != nil {
		return fmt.Errorf("section [%s]: %w", ConfigSection, err)
	}
	return c.Validate()
}

// Validate checks the options.
func (c *Config) Validate() error {
	if c.OTA.BufferSize <= 0 {
		return fmt.Errorf("invalid buffer size %d", c.OTA.BufferSize)
	}
	if c.OTA.Wait != ota.WaitPoll && c.OTA.Wait != ota.WaitNotify {
		return fmt.Errorf("invalid wait mode %q", c.OTA.Wait)
	}
	if c.OTA.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %v", c.OTA.Timeout)
	}
	return nil
}

// NewTarget creates the update target from Target. The returned closer
// releases the resources of the target.
func (c *Config) NewTarget(ctx context.Context) (ota.Target, io.Closer, error) {
	u, err := url.Parse(c.Target)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid target %q: %w", c.Target, err)
	}
	switch u.Scheme {
	case "file":
		dir := u.Path
		if dir == "" {
			dir = u.Opaque
		}
		if dir == "" {
			return nil, nil, fmt.Errorf("invalid target %q: missing directory", c.Target)
		}
		t := file.New(dir)
		if name := u.Query().Get("name"); name != "" {
			t.Name = name
		}
		return t, nopCloser{}, nil
	case "mem":
		var capacity int64
		if val := u.Query().Get("capacity"); val != "" {
			if _, err := fmt.Sscan(val, &capacity); err != nil {
				return nil, nil, fmt.Errorf("invalid target %q: capacity: %w", c.Target, err)
			}
		}
		return memory.New(capacity), nopCloser{}, nil
	case "gs":
		loc, err := gcs.ParseURL(c.Target)
		if err != nil {
			return nil, nil, err
		}
		client, err := gcs.NewClient(ctx, c.Credentials)
		if err != nil {
			return nil, nil, err
		}
		return gcs.New(client, loc), client, nil
	}
	return nil, nil, fmt.Errorf("unsupported target %q", c.Target)
}

// NewRestarter creates the restarter run after a successful update.
func (c *Config) NewRestarter() ota.Restarter {
	return system.NewRebooter(strings.Fields(c.RestartCommand), c.DryRun)
}

// NewHeapProbe creates the heap probe for the preflight check.
func (c *Config) NewHeapProbe() ota.HeapProbe {
	return &system.HeapProbe{Budget: c.MemoryBudget}
}

// Service is the assembled update pipeline.
type Service struct {
	Updater *ota.Updater
	Events  *EventReporter
	Redis   *status.Reporter
	Handler *Handler
	closers []io.Closer
}

// NewService creates the update pipeline reporting events through reg.
func (c *Config) NewService(ctx context.Context, reg l1.Registrar) (*Service, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	target, closer, err := c.NewTarget(ctx)
	if err != nil {
		return nil, err
	}
	s := &Service{closers: []io.Closer{closer}}
	u := ota.New(c.OTA, target)
	u.Heap = c.NewHeapProbe()
	u.Restarter = c.NewRestarter()

	reporters := &ota.ReporterMux{}
	s.Events = &EventReporter{Registrar: reg}
	reporters.Add(s.Events)
	if c.RedisAddr != "" {
		client, err := status.Dial(ctx, c.RedisAddr)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, client)
		s.Redis = status.NewReporter(client, status.DefaultComponent)
		reporters.Add(s.Redis)
	}
	u.Reporter = reporters
	s.Updater = u
	s.Handler = NewHandler(u)
	glog.Infof("update target %s, buffer %d, wait %s", c.Target, c.OTA.BufferSize, c.OTA.Wait)
	return s, nil
}

// Close releases the resources.
func (s *Service) Close() error {
	var errs fx.AggregatedError
	for _, c := range s.closers {
		errs.Add(c.Close())
	}
	return errs.Aggregate()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
