package config

import "testing"

func TestSet(t *testing.T) {
	cfg := &Config{}

	cases := []struct {
		key   string
		value string
		check func() string
	}{
		{"server.base_url", "https://chat.example.com", func() string { return cfg.Server.BaseURL }},
		{"auth.token", "tok-1", func() string { return cfg.Auth.Token }},
		{"auth.user_id", "user-1", func() string { return cfg.Auth.UserID }},
		{"auth.user_name", "Dana", func() string { return cfg.Auth.UserName }},
		{"log.level", "debug", func() string { return cfg.Log.Level }},
	}
	for _, tc := range cases {
		if err := Set(cfg, tc.key, tc.value); err != nil {
			t.Fatalf("Set(%s): %v", tc.key, err)
		}
		if got := tc.check(); got != tc.value {
			t.Errorf("Set(%s) = %q, want %q", tc.key, got, tc.value)
		}
	}
}

func TestSetRejectsUnknownKeys(t *testing.T) {
	cfg := &Config{}
	for _, key := range []string{"nodot", "server.nope", "nosection.field"} {
		if err := Set(cfg, key, "x"); err == nil {
			t.Errorf("Set(%s) accepted an invalid key", key)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty config passed validation")
	}

	cfg.Server.BaseURL = "https://chat.example.com"
	cfg.Auth.Token = "tok-1"
	if err := cfg.Validate(); err == nil {
		t.Fatal("config without user id passed validation")
	}

	cfg.Auth.UserID = "user-1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
