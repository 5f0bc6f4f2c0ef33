package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const (
	envPrefix = "CALWINDOW_"
	maxDays   = 366
)

type Application struct {
	Host string `koanf:"host"`
	// Days is the length of the window, starting today.
	Days int `koanf:"days"`
	// Timezone is the IANA name of the zone events are placed in. "Local" uses the host zone.
	Timezone string   `koanf:"timezone"`
	Output   Output   `koanf:"output"`
	Google   Google   `koanf:"google"`
	Server   Server   `koanf:"server"`
	Database Database `koanf:"db"`
}

type Output struct {
	File   string `koanf:"file"`
	Format string `koanf:"format"`
}

type Google struct {
	ClientId     string `koanf:"clientid"`
	ClientSecret string `koanf:"clientsecret"`
	// TokenFile stores the OAuth token when the database is disabled.
	TokenFile string `koanf:"tokenfile"`
	// Calendars restricts fetching to these calendar IDs. Empty means every calendar.
	Calendars   []string `koanf:"calendars"`
	Concurrency int      `koanf:"concurrency"`
}

type Server struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	// Refresh is a cron expression for rebuilding the window.
	Refresh string `koanf:"refresh"`
}

type Database struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	User    string `koanf:"user"`
	Pass    string `koanf:"pass"`
	Name    string `koanf:"name"`
	Schema  string `koanf:"schema"`
	// RetentionDays is how long schedule snapshots are kept. 0 keeps them forever.
	RetentionDays int `koanf:"retentiondays"`
}

func defaults() Application {
	return Application{
		Host:     "http://localhost:8181",
		Days:     7,
		Timezone: "Local",
		Output: Output{
			File:   "calendar_events.json",
			Format: "json",
		},
		Google: Google{
			TokenFile:   "token.json",
			Concurrency: 4,
		},
		Server: Server{
			Enabled: false,
			Addr:    ":8181",
			Refresh: "*/15 * * * *",
		},
		Database: Database{
			Enabled: false,
			Host:    "localhost",
			Port:    5432,
			User:    "calwindow",
			Pass:    "",
			Name:    "calwindow",
			Schema:  "calwindow",

			RetentionDays: 30,
		},
	}
}

// Load reads defaults, then the YAML file at path (if present), then CALWINDOW_* environment
// variables, and validates the result.
func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			if k == "google.calendars" {
				return k, strings.Split(v, ",")
			}
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	if err := app.Validate(); err != nil {
		return Application{}, err
	}
	return app, nil
}

// Validate rejects settings the application cannot start with.
func (a Application) Validate() error {
	if a.Days < 1 || a.Days > maxDays {
		return fmt.Errorf("days must be between 1 and %d, got %d", maxDays, a.Days)
	}
	if _, err := a.Location(); err != nil {
		return err
	}
	switch a.Output.Format {
	case "json", "csv":
	default:
		return fmt.Errorf("unsupported output format %q", a.Output.Format)
	}
	if a.Google.Concurrency < 1 {
		return fmt.Errorf("google concurrency must be at least 1, got %d", a.Google.Concurrency)
	}
	if a.Server.Enabled {
		if _, err := cron.ParseStandard(a.Server.Refresh); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", a.Server.Refresh, err)
		}
	}
	return nil
}

// Location resolves Timezone.
func (a Application) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}
