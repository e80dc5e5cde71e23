package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	Relay struct {
		OriginPatterns []string
		SendBuffer     int
		StatusLogSecs  int
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("relay.origin_patterns", "*")
	v.SetDefault("relay.send_buffer", 32)
	v.SetDefault("relay.status_log_seconds", 30)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("relay.origin_patterns", "RELAY_ORIGIN_PATTERNS")
	v.BindEnv("relay.send_buffer", "RELAY_SEND_BUFFER")
	v.BindEnv("relay.status_log_seconds", "RELAY_STATUS_LOG_SECONDS")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Relay.OriginPatterns = splitCSV(v.GetString("relay.origin_patterns"))
	c.Relay.SendBuffer = v.GetInt("relay.send_buffer")
	c.Relay.StatusLogSecs = v.GetInt("relay.status_log_seconds")

	log.Printf("config loaded: port=%s origins=%v", c.Server.Port, c.Relay.OriginPatterns)
	return c
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toString(v any) string { return fmt.Sprint(v) }
