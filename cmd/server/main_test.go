package main

import (
	"strings"
	"testing"

	"billdesk/backend/internal/config"
)

func TestValidateSecurityConfig(t *testing.T) {
	cfg := config.Config{AuthSecret: strings.Repeat("x", 32)}
	if err := validateSecurityConfig(cfg); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg.AuthSecret = "short"
	if err := validateSecurityConfig(cfg); err == nil {
		t.Fatal("short secret accepted")
	}

	cfg.AuthSecret = ""
	if err := validateSecurityConfig(cfg); err == nil {
		t.Fatal("empty secret accepted")
	}
}
