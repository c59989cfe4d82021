package main

import (
	"os"
	"strconv"
	"strings"
)

// getEnvOrDefault returns $key, or fallback when it is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// getEnvBool reads $key as a flag default. Besides the strconv.ParseBool
// forms it accepts yes/no and on/off; anything else keeps fallback.
func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return fallback
}
