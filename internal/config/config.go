package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "SHARECAL_"

type Application struct {
	Host       string     `koanf:"host"`
	Server     Server     `koanf:"server"`
	Database   Database   `koanf:"db"`
	Redis      Redis      `koanf:"redis"`
	Auth       Auth       `koanf:"auth"`
	Scheduling Scheduling `koanf:"scheduling"`
	Audit      Audit      `koanf:"audit"`
}

type Server struct {
	Port int `koanf:"port"`
}

type Database struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Pass     string `koanf:"pass"`
	Name     string `koanf:"name"`
	Schema   string `koanf:"schema"`
	MaxConns int32  `koanf:"maxconns"`
}

// Redis is optional. Notifications are only logged when Address is empty.
type Redis struct {
	Address       string `koanf:"address"`
	Password      string `koanf:"password"`
	DB            int    `koanf:"db"`
	ChannelPrefix string `koanf:"channelprefix"`
}

type Auth struct {
	JwtSecret       string `koanf:"jwtsecret"`
	TrustUserHeader bool   `koanf:"trustuserheader"`
}

// Audit controls whether every handled request is stored in the audit_logs table.
type Audit struct {
	Enabled bool `koanf:"enabled"`
}

type Scheduling struct {
	ConflictHorizonDays int `koanf:"conflicthorizondays"`
	MaxOccurrences      int `koanf:"maxoccurrences"`
	ExpansionWorkers    int `koanf:"expansionworkers"`
	MaxBatchSize        int `koanf:"maxbatchsize"`
}

func Defaults() Application {
	return Application{
		Host: "http://localhost:8181",
		Server: Server{
			Port: 8181,
		},
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			User:     "sharecal",
			Pass:     "",
			Name:     "sharecal",
			Schema:   "sharecal",
			MaxConns: 25,
		},
		Redis: Redis{
			ChannelPrefix: "sharecal",
		},
		Auth: Auth{
			TrustUserHeader: false,
		},
		Audit: Audit{
			Enabled: true,
		},
		Scheduling: Scheduling{
			ConflictHorizonDays: 365,
			MaxOccurrences:      5000,
			ExpansionWorkers:    8,
			MaxBatchSize:        100,
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
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
			// SHARECAL_DB_HOST -> db.host
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
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

	return app, nil
}
