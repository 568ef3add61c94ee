// Package config provides .env overlay helpers.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Env holds values supplied through the environment or a .env file.
type Env struct {
	User         string
	TextgenURL   string
	TextgenToken string
	DB           string
}

// LoadEnv loads .env files into the process environment and reads the typebook
// variables. Variables already set win over file values. Missing files are skipped.
func LoadEnv(paths ...string) Env {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			// Best-effort: a malformed .env file is ignored.
			_ = err
		}
	}
	return Env{
		User:         os.Getenv("TYPEBOOK_USER"),
		TextgenURL:   os.Getenv("TYPEBOOK_TEXTGEN_URL"),
		TextgenToken: os.Getenv("TYPEBOOK_TEXTGEN_TOKEN"),
		DB:           os.Getenv("TYPEBOOK_DB"),
	}
}

// Pick returns the first non-empty value.
func Pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Deref returns *p, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
