package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/veil-sh/veil/internal/config"
	"github.com/veil-sh/veil/internal/pii"
	"github.com/veil-sh/veil/internal/session"
)

// resetFlags resets all package-level flag variables to their zero values.
func resetFlags() {
	flagTypes = ""
	flagProvider = ""
	flagModel = ""
	flagFormat = ""
	flagOut = ""
	flagRules = ""
	flagSemanticURL = ""
	flagDocumentID = ""
	flagPage = 0
	flagNoLLM = false
	flagFailOnFindings = false
	flagCacheMax = 0
	flagMerge = false
	flagAddr = ""
}

// --- splitComma tests ---

func TestSplitComma(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"single value", "foo", []string{"foo"}},
		{"multiple values", "a,b,c", []string{"a", "b", "c"}},
		{"whitespace trimmed", " a , b , c ", []string{"a", "b", "c"}},
		{"empty parts skipped", "a,,b", []string{"a", "b"}},
		{"all empty", ",,,", nil},
		{"trailing comma", "a,b,", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitComma(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("splitComma(%q) = %v (len %d), want %v (len %d)",
					tt.input, got, len(got), tt.want, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitComma(%q)[%d] = %q, want %q",
						tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

// --- parseTypes tests ---

func TestParseTypes(t *testing.T) {
	got, err := parseTypes("ssn, EMAIL ,phone")
	if err != nil {
		t.Fatalf("parseTypes: %v", err)
	}
	want := []pii.Type{pii.TypeSSN, pii.TypeEmail, pii.TypePhone}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestParseTypesEmpty(t *testing.T) {
	got, err := parseTypes("")
	if err != nil || got != nil {
		t.Errorf("parseTypes(\"\") = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestParseTypesUnknown(t *testing.T) {
	if _, err := parseTypes("passport"); err == nil {
		t.Error("parseTypes accepted an unknown type")
	}
}

// --- buildOverrides tests ---

func TestBuildOverrides_NoFlags(t *testing.T) {
	resetFlags()
	m := buildOverrides()
	if len(m) != 0 {
		t.Errorf("buildOverrides() with no flags = %v, want empty map", m)
	}
}

func TestBuildOverrides_AllFlags(t *testing.T) {
	resetFlags()
	flagProvider = "openai"
	flagModel = "gpt-4o"
	flagFormat = "json"
	flagRules = "rules.yaml"
	flagSemanticURL = "http://localhost:9200"

	m := buildOverrides()

	expected := map[string]string{
		"provider":    "openai",
		"model":       "gpt-4o",
		"format":      "json",
		"rulesFile":   "rules.yaml",
		"semanticURL": "http://localhost:9200",
	}

	if len(m) != len(expected) {
		t.Fatalf("buildOverrides() returned %d entries, want %d", len(m), len(expected))
	}
	for k, v := range expected {
		if m[k] != v {
			t.Errorf("buildOverrides()[%q] = %q, want %q", k, m[k], v)
		}
	}
}

// --- version command tests ---

func TestVersionCmd_Execute(t *testing.T) {
	// versionCmd writes to os.Stdout directly, but we can verify it runs without error.
	err := versionCmd.Execute()
	if err != nil {
		t.Errorf("version command returned error: %v", err)
	}
}

// --- config command tests ---

func TestConfigInit_CreatesFile(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configCmd.SetArgs([]string{"init"})
	err := configCmd.Execute()
	if err != nil {
		t.Fatalf("config init returned error: %v", err)
	}

	configPath := filepath.Join(tmpDir, "veil", "config.json")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("config init did not create config.json")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("cannot read config file: %v", err)
	}
	var cfg config.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("config file is not valid JSON: %v", err)
	}
	if cfg.Provider == "" {
		t.Error("config file has empty provider")
	}
}

func TestConfigInit_AlreadyExists(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfgDir := filepath.Join(tmpDir, "veil")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(`{"provider":"openai"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	configCmd.SetArgs([]string{"init"})
	err := configCmd.Execute()
	if err != nil {
		t.Fatalf("config init with existing file returned error: %v", err)
	}

	// Verify original content is preserved (not overwritten)
	data, err := os.ReadFile(filepath.Join(cfgDir, "config.json"))
	if err != nil {
		t.Fatalf("cannot read config file: %v", err)
	}
	var cfg config.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("config init overwrote existing file: provider = %q, want %q", cfg.Provider, "openai")
	}
}

func TestConfigSet_UpdatesFile(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configCmd.SetArgs([]string{"set", "provider", "ollama"})
	err := configCmd.Execute()
	if err != nil {
		t.Fatalf("config set returned error: %v", err)
	}

	configPath := filepath.Join(tmpDir, "veil", "config.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("cannot read config file: %v", err)
	}
	var cfg config.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("config file is not valid JSON: %v", err)
	}
	if cfg.Provider != "ollama" {
		t.Errorf("provider = %q, want %q", cfg.Provider, "ollama")
	}
}

func TestConfigSet_InvalidKey(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configCmd.SetArgs([]string{"set", "unknownKey", "value"})
	err := configCmd.Execute()
	if err == nil {
		t.Error("config set with invalid key should return error")
	}
}

func TestConfigShow_Execute(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configCmd.SetArgs([]string{"show"})
	err := configCmd.Execute()
	if err != nil {
		t.Errorf("config show returned error: %v", err)
	}
}

func TestConfigPath_Execute(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configCmd.SetArgs([]string{"path"})
	err := configCmd.Execute()
	if err != nil {
		t.Errorf("config path returned error: %v", err)
	}
}

func TestConfigSetHelp_ListsKeys(t *testing.T) {
	for _, key := range settableKeys {
		if !strings.Contains(configSetCmd.Long, key) {
			t.Errorf("config set help does not mention key %q", key)
		}
	}
}

// --- cache command tests ---

func TestCacheAddAndStats(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	cachePath := filepath.Join(tmpDir, "session.json")

	cacheCmd.SetArgs([]string{"add", cachePath, "123-45-6789", "***-**-6789", "SSN"})
	if err := cacheCmd.Execute(); err != nil {
		t.Fatalf("cache add returned error: %v", err)
	}

	data, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("cache file is not valid JSON: %v", err)
	}
	if len(file.Records) != 1 {
		t.Fatalf("cache file has %d records, want 1", len(file.Records))
	}
	if file.Records[0].ValueHash == "" || file.Records[0].MaskedValue != "***-**-6789" {
		t.Errorf("record = %+v", file.Records[0])
	}

	cacheCmd.SetArgs([]string{"stats", cachePath})
	if err := cacheCmd.Execute(); err != nil {
		t.Errorf("cache stats returned error: %v", err)
	}
}

func TestCacheAddRejectsUnknownType(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cacheCmd.SetArgs([]string{"add", filepath.Join(tmpDir, "c.json"), "v", "m", "PASSPORT"})
	if err := cacheCmd.Execute(); err == nil {
		t.Error("cache add accepted an unknown type")
	}
}

func TestCacheClear_Execute(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	cachePath := filepath.Join(tmpDir, "session.json")

	c := session.NewCache(0)
	c.Add("123-45-6789", "***-**-6789", pii.TypeSSN)
	if err := saveCacheFile(cachePath, c); err != nil {
		t.Fatal(err)
	}

	cacheCmd.SetArgs([]string{"clear", cachePath})
	if err := cacheCmd.Execute(); err != nil {
		t.Fatalf("cache clear returned error: %v", err)
	}

	loaded, err := loadCacheFile(cachePath)
	if err != nil {
		t.Fatalf("loading cleared cache: %v", err)
	}
	if loaded.Len() != 0 {
		t.Errorf("Len = %d after clear, want 0", loaded.Len())
	}
}

func TestCacheImport_Merge(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	dst := filepath.Join(tmpDir, "dst.json")
	src := filepath.Join(tmpDir, "src.json")

	a := session.NewCache(0)
	a.Add("123-45-6789", "***-**-6789", pii.TypeSSN)
	if err := saveCacheFile(dst, a); err != nil {
		t.Fatal(err)
	}
	b := session.NewCache(0)
	b.Add("jane@example.com", "j***@example.com", pii.TypeEmail)
	if err := saveCacheFile(src, b); err != nil {
		t.Fatal(err)
	}

	cacheCmd.SetArgs([]string{"import", dst, src, "--merge"})
	if err := cacheCmd.Execute(); err != nil {
		t.Fatalf("cache import returned error: %v", err)
	}

	loaded, err := loadCacheFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 2 {
		t.Errorf("Len = %d after merge import, want 2", loaded.Len())
	}
}

// --- exit code constants tests ---

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		code int
		want int
	}{
		{"ExitSuccess", ExitSuccess, 0},
		{"ExitFindings", ExitFindings, 1},
		{"ExitUsageError", ExitUsageError, 2},
		{"ExitAuthError", ExitAuthError, 3},
		{"ExitRuntimeError", ExitRuntimeError, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.code, tt.want)
			}
		})
	}
}

// --- version constant test ---

func TestVersionConstant(t *testing.T) {
	if version == "" {
		t.Error("version constant is empty")
	}
}
