package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GRPCPort    string // vuoto = niente gRPC
	CatalogPath string // YAML opzionale, vuoto = catalogo predefinito
	Seed        int64  // 0 = seed dal clock

	CropDelay       time.Duration
	FertilizerDelay time.Duration
	LogLevel        string
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

func loadConfig() Config {
	// .env opzionale, le variabili già impostate vincono
	_ = godotenv.Load()
	return Config{
		Port:            getenv("PORT", "5010"),
		GRPCPort:        getenv("GRPC_PORT", "5011"),
		CatalogPath:     getenv("CATALOG_PATH", ""),
		Seed:            int64(getenvInt("RANDOM_SEED", 0)),
		CropDelay:       time.Duration(getenvInt("CROP_DELAY_MS", 1500)) * time.Millisecond,
		FertilizerDelay: time.Duration(getenvInt("FERTILIZER_DELAY_MS", 1000)) * time.Millisecond,
		LogLevel:        getenv("LOG_LEVEL", "info"),
	}
}
