package cli

import (
	"testing"

	"tenant-quiz-service/internal/config"
)

func TestCheckBackends(t *testing.T) {
	cases := []struct {
		name     string
		postgres string
		redis    string
		wantErr  bool
	}{
		{"memory only", "", "", false},
		{"postgres and redis", "postgres://quiz@db/quiz", "redis:6379", false},
		{"redis only", "", "redis:6379", false},
		{"postgres without redis", "postgres://quiz@db/quiz", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Postgres.URL = tc.postgres
			cfg.Redis.Addr = tc.redis
			err := checkBackends(cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("checkBackends() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
