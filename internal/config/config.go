// Package config assembles runtime settings.
//
// Layers, lowest priority first:
//  1. built-in defaults
//  2. leadscraper.json5 (or LEADS_CONFIG_FILE)
//  3. leadscraper.local.json5 next to it
//  4. environment, after loading .env
//
// CLI flags are applied on top by the caller.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/titanous/json5"

	"github.com/lucasfdcampos/lead-scraper/internal/fetch"
	"github.com/lucasfdcampos/lead-scraper/internal/location"
)

const (
	DefaultConfigFile     = "leadscraper.json5"
	DefaultUserAgentsFile = "user_agents.txt"
)

// Config is the merged runtime configuration. The json tags name the keys of
// the config file.
type Config struct {
	UserAgents      []string `json:"user_agents"`
	AcceptLanguages []string `json:"accept_languages"`
	Proxies         []string `json:"proxies"`
	// Cookies is a "k=v; k2=v2" string sent with every direct request.
	Cookies      string   `json:"cookies"`
	BlockMarkers []string `json:"block_markers"`

	// BatchLocations replaces the built-in us_latino sweep list.
	BatchLocations []string `json:"batch_locations"`
	// StateFallbacks adds to or overrides the per-state fallback cities.
	StateFallbacks map[string]string `json:"state_fallbacks"`

	RenderProxyURL   string `json:"render_proxy_url"`
	RenderProxyToken string `json:"render_proxy_token"`
	// RenderProxyRPM is a pointer so an explicit 0 (no throttling) survives
	// the merge.
	RenderProxyRPM  *int `json:"render_proxy_rpm"`
	BrowserFallback bool `json:"browser_fallback"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	MongoURI      string `json:"mongo_uri"`

	// TaskMinLeads and TaskMaxCycles bound task processing; zero keeps the
	// pipeline defaults.
	TaskMinLeads  int `json:"task_min_leads"`
	TaskMaxCycles int `json:"task_max_cycles"`

	Addr      string `json:"addr"`
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

// Defaults returns the built-in layer.
func Defaults() Config {
	rpm := fetch.DefaultRenderRPM
	return Config{
		RenderProxyURL: fetch.DefaultRenderProxyURL,
		RenderProxyRPM: &rpm,
		RedisAddr:      "localhost:6379",
		MongoURI:       "mongodb://localhost:27017",
		Addr:           ":8080",
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Load reads .env, the config file pair and the environment, and merges them.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := ReadFile(getEnv("LEADS_CONFIG_FILE", DefaultConfigFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	env, err := fromEnv()
	if err != nil {
		return nil, err
	}
	if err := overlay(&cfg, env); err != nil {
		return nil, eris.Wrap(err, "config: merge env")
	}
	defaults := Defaults()
	if cfg.RenderProxyRPM != nil {
		defaults.RenderProxyRPM = nil
	}
	if err := mergo.Merge(&cfg, defaults); err != nil {
		return nil, eris.Wrap(err, "config: merge defaults")
	}
	return &cfg, nil
}

// ReadFile reads name and, when present, its ".local" sibling
// (leadscraper.json5 → leadscraper.local.json5), the latter taking priority.
// It returns os.ErrNotExist when neither file exists.
func ReadFile(name string) (Config, error) {
	var out Config
	found := false

	base, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, eris.Wrapf(err, "config: read %s", name)
	}
	if len(base) > 0 {
		if err := json5.Unmarshal(base, &out); err != nil {
			return out, eris.Wrapf(err, "config: parse %s", name)
		}
		found = true
	}

	local := localName(name)
	override, err := os.ReadFile(local)
	if err != nil && !os.IsNotExist(err) {
		return out, eris.Wrapf(err, "config: read %s", local)
	}
	if len(override) > 0 {
		var o Config
		if err := json5.Unmarshal(override, &o); err != nil {
			return out, eris.Wrapf(err, "config: parse %s", local)
		}
		if err := overlay(&out, o); err != nil {
			return out, eris.Wrapf(err, "config: merge %s", local)
		}
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

// overlay merges the non-zero fields of src over dst. mergo dereferences
// pointers and treats 0 as empty, so the render budget is carried by hand.
func overlay(dst *Config, src Config) error {
	rpm := src.RenderProxyRPM
	src.RenderProxyRPM = nil
	if err := mergo.Merge(dst, src, mergo.WithOverride); err != nil {
		return err
	}
	if rpm != nil {
		v := *rpm
		dst.RenderProxyRPM = &v
	}
	return nil
}

func localName(name string) string {
	dir, file := filepath.Split(name)
	ext := filepath.Ext(file)
	return filepath.Join(dir, strings.TrimSuffix(file, ext)+".local"+ext)
}

// fromEnv returns only the settings present in the environment.
func fromEnv() (Config, error) {
	var c Config

	uas, err := ReadLines(getEnv("LEADS_USER_AGENTS_FILE", DefaultUserAgentsFile))
	if err != nil {
		return c, err
	}
	c.UserAgents = uas

	if path := os.Getenv("LEADS_PROXIES_FILE"); path != "" {
		proxies, err := ReadLines(path)
		if err != nil {
			return c, err
		}
		c.Proxies = proxies
	}

	c.Cookies = os.Getenv("LEADS_COOKIES")
	c.RenderProxyURL = os.Getenv("RENDER_PROXY_URL")
	c.RenderProxyToken = os.Getenv("RENDER_PROXY_TOKEN")
	if v := os.Getenv("RENDER_PROXY_RPM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c, eris.Errorf("config: RENDER_PROXY_RPM must be a non-negative integer, got %q", v)
		}
		c.RenderProxyRPM = &n
	}
	c.BrowserFallback = getEnvBool("BROWSER_FALLBACK", false)

	c.RedisAddr = os.Getenv("REDIS_ADDR")
	c.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, eris.Errorf("config: REDIS_DB must be an integer, got %q", v)
		}
		c.RedisDB = n
	}
	c.MongoURI = os.Getenv("MONGO_URI")
	for key, dst := range map[string]*int{"MIN_LEADS": &c.TaskMinLeads, "MAX_CYCLES": &c.TaskMaxCycles} {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return c, eris.Errorf("config: %s must be a non-negative integer, got %q", key, v)
			}
			*dst = n
		}
	}

	c.Addr = os.Getenv("ADDR")
	c.LogLevel = os.Getenv("LOG_LEVEL")
	c.LogFormat = os.Getenv("LOG_FORMAT")
	return c, nil
}

// RenderRPM returns the render proxy request budget; 0 disables throttling.
func (c *Config) RenderRPM() int {
	if c.RenderProxyRPM == nil {
		return fetch.DefaultRenderRPM
	}
	return *c.RenderProxyRPM
}

// Tables returns the built-in location tables with the configured overrides
// applied. Batch is left empty unless configured; each site then sweeps its
// own list.
func (c *Config) Tables() location.Tables {
	t := location.Default()
	t.Batch = nil
	if len(c.BatchLocations) > 0 {
		t.Batch = append([]string(nil), c.BatchLocations...)
	}
	for region, city := range c.StateFallbacks {
		t.Fallback[strings.ToUpper(region)] = city
	}
	return t
}

// Identities builds the per-attempt identity pool.
func (c *Config) Identities() *fetch.RandomIdentities {
	return fetch.NewRandomIdentities(c.UserAgents, c.AcceptLanguages, c.Proxies)
}

// Detector builds the block detector; configured markers replace the
// defaults.
func (c *Config) Detector() *fetch.MarkerDetector {
	return fetch.NewMarkerDetector(c.BlockMarkers...)
}

// ReadLines returns the non-empty, non-comment lines of path. A missing file
// yields nil.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "config: open %s", path)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "config: read %s", path)
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func (c *Config) String() string {
	return fmt.Sprintf("config{uas=%d proxies=%d render=%s rpm=%d browser=%v redis=%s}",
		len(c.UserAgents), len(c.Proxies), c.RenderProxyURL, c.RenderRPM(), c.BrowserFallback, c.RedisAddr)
}
