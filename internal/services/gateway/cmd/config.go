package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	// Recommendation Service remoto (gRPC ha precedenza su HTTP); vuoti = motore in-process
	RecommenderGRPC string
	RecommenderURL  string
	CatalogPath     string
	CropDelayMs     int
	FertDelayMs     int

	// Blynk
	BlynkURL     string
	BlynkToken   string // token precompilato nelle sessioni sensor
	BlynkPins    [3]string
	BlynkRetries int

	TimeoutMs     int // timeout di un singolo step
	UpstreamMs    int // timeout HTTP verso gli upstream
	SessionTTLMin int
	SweepSec      int

	// Circuit breaker (per upstream)
	CBFails      int
	CBOpenMs     int
	CBIntervalMs int

	// Storico: Influx diretto, oppure MQTT -> history-service
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
	HistoryURL   string // es. http://history-service:8080

	MQTTHost     string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	ClientID     string

	CORSOrigins []string
	IntroPath   string // file con il testo della guida, opzionale
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadConfig() Config {
	_ = godotenv.Load()
	return Config{
		Port:     getenv("PORT", "5009"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RecommenderGRPC: getenv("RECOMMENDER_GRPC_ADDR", ""),
		RecommenderURL:  getenv("RECOMMENDER_URL", ""),
		CatalogPath:     getenv("CATALOG_PATH", ""),
		CropDelayMs:     getenvInt("CROP_DELAY_MS", 1500),
		FertDelayMs:     getenvInt("FERTILIZER_DELAY_MS", 1000),

		BlynkURL:     getenv("BLYNK_URL", "https://blynk.cloud/external/api"),
		BlynkToken:   getenv("BLYNK_TOKEN", ""),
		BlynkPins:    [3]string{getenv("BLYNK_PIN_TEMPERATURE", "v1"), getenv("BLYNK_PIN_HUMIDITY", "v2"), getenv("BLYNK_PIN_RAINFALL", "v3")},
		BlynkRetries: getenvInt("BLYNK_RETRIES", 2),

		TimeoutMs:     getenvInt("TIMEOUT_MS", 30000),
		UpstreamMs:    getenvInt("UPSTREAM_TIMEOUT_MS", 10000),
		SessionTTLMin: getenvInt("SESSION_TTL_MIN", 30),
		SweepSec:      getenvInt("SESSION_SWEEP_SEC", 60),

		CBFails:      getenvInt("CB_FAILS", 5),
		CBOpenMs:     getenvInt("CB_OPEN_MS", 30000),
		CBIntervalMs: getenvInt("CB_INTERVAL_MS", 60000),

		InfluxURL:    getenv("INFLUX_URL", ""),
		InfluxToken:  getenv("INFLUX_TOKEN", ""),
		InfluxOrg:    getenv("INFLUX_ORG", "agriassist"),
		InfluxBucket: getenv("INFLUX_BUCKET", "events"),
		HistoryURL:   getenv("HISTORY_URL", ""),

		MQTTHost:     getenv("RABBITMQ_HOST", ""),
		MQTTPort:     getenvInt("RABBITMQ_PORT", 1883),
		MQTTUser:     getenv("RABBITMQ_USER", "guest"),
		MQTTPassword: getenv("RABBITMQ_PASSWORD", "guest"),
		ClientID:     getenv("HOSTNAME", "gateway"),

		CORSOrigins: splitList(getenv("CORS_ORIGINS", "*")),
		IntroPath:   getenv("INTRO_PATH", ""),
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
