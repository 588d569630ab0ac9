package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	fails bool
}

func (s *sample) Validate() error {
	if s.fails || s.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func writeFile(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_KeepsDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "notehub")
	path := writeFile(t, "name: ${SAMPLE_NAME}\n")

	s := &sample{Port: 8080}
	if err := Load(path, s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "notehub" || s.Port != 8080 {
		t.Errorf("loaded %+v", s)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	s := &sample{Port: 1}
	err := Load(filepath.Join(t.TempDir(), "nope.yaml"), s)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := writeFile(t, "port: 0\n")
	err := Load(path, &sample{})
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadOptional_MissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	s := &sample{Name: "default", Port: 8080}
	if err := LoadOptional(missing, s); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if s.Name != "default" {
		t.Errorf("defaults changed: %+v", s)
	}

	if err := LoadOptional(missing, &sample{fails: true}); err == nil {
		t.Fatal("defaults must still be validated")
	}
}

func TestLoadOptional_ReadsPresentFile(t *testing.T) {
	path := writeFile(t, "port: 9000\n")
	s := &sample{}
	if err := LoadOptional(path, s); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if s.Port != 9000 {
		t.Errorf("port = %d", s.Port)
	}
}
