package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
)

func TestGodotenvQuoting(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"single quotes keep double quotes", `REDIS_PASSWORD='value with "double quotes"'`, `value with "double quotes"`},
		{"double quotes keep hash", `REDIS_PASSWORD="p#ss word"`, "p#ss word"},
		{"unquoted strips comment", `REDIS_PASSWORD=secret # rotated monthly`, "secret"},
		{"empty", `REDIS_PASSWORD=`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ".env")
			if err := os.WriteFile(path, []byte(tt.line+"\n"), 0o600); err != nil {
				t.Fatal(err)
			}

			env, err := godotenv.Read(path)
			if err != nil {
				t.Fatalf("Error reading env: %v", err)
			}
			if got := env["REDIS_PASSWORD"]; got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
