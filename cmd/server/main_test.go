package main

import (
	"testing"

	"tarpaulin/backend/internal/config"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := []config.Config{
		{AuthSecret: "short", AllowedOrigin: "https://books.example"},
		{AuthSecret: strongSecret, AllowedOrigin: "*"},
		{AuthSecret: strongSecret, AllowedOrigin: "https://books.example", AssistEndpoint: "https://llm.example/v1/chat/completions"},
	}
	for i, cfg := range cases {
		if err := validateSecurityConfig(cfg); err == nil {
			t.Fatalf("case %d: expected weak security config to be rejected", i)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: strongSecret, AllowedOrigin: "https://books.example"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
