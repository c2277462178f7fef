package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/visionary/internal/models"
	"github.com/desertthunder/visionary/internal/repositories"
	"github.com/desertthunder/visionary/internal/services"
	"github.com/desertthunder/visionary/internal/shared"
	tu "github.com/desertthunder/visionary/internal/testing"
)

func newTestRunner(t *testing.T, oracle services.Oracle) (*Runner, *bytes.Buffer, *repositories.Library) {
	t.Helper()

	lib, err := repositories.OpenPath(shared.MemoryDatabase)
	if err != nil {
		t.Fatalf("failed to open library: %v", err)
	}
	t.Cleanup(func() { lib.Close() })

	config := shared.DefaultConfig()
	config.Database.Path = shared.MemoryDatabase

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:  config,
		Library: lib,
		Oracle:  oracle,
		Logger:  log.New(io.Discard),
		Output:  output,
	})
	t.Cleanup(func() { runner.Close() })

	return runner, output, lib
}

func run(r *Runner, args ...string) error {
	return newApp(r).Run(context.Background(), append([]string{"visionary"}, args...))
}

func writeImage(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			oracle := tu.NewStubOracle("cat", 0.9)

			runner := NewRunner(RunnerOpts{
				ConfigPath: "/test/path/config.toml",
				Config:     config,
				Oracle:     oracle,
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.oracle != oracle {
				t.Error("expected oracle to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"setup", "classify", "albums", "photos", "purge", "serve"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("missing file uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				ConfigPath: filepath.Join(t.TempDir(), "missing.toml"),
				Logger:     log.New(io.Discard),
				Output:     &bytes.Buffer{},
			})

			config, err := runner.loadConfig(&cli.Command{})
			if err != nil {
				t.Fatalf("expected defaults, got %v", err)
			}
			if config.Database.Path != shared.DefaultConfig().Database.Path {
				t.Errorf("expected default database path, got %s", config.Database.Path)
			}
		})

		t.Run("invalid file is rejected", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[classifier]\nbackend = \"onnx\"\n"), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			runner := NewRunner(RunnerOpts{ConfigPath: path, Logger: log.New(io.Discard), Output: &bytes.Buffer{}})
			if err := run(runner, "albums", "list"); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})
}

func TestSetupCommands(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	dbPath := filepath.Join(dir, "library.db")

	config := "[database]\npath = \"" + filepath.ToSlash(dbPath) + "\"\n"
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{ConfigPath: configPath, Logger: log.New(io.Discard), Output: output})
	t.Cleanup(func() { runner.Close() })

	t.Run("database", func(t *testing.T) {
		if err := run(runner, "setup", "database"); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		tu.AssertFileExists(t, dbPath)
		if !strings.Contains(output.String(), "schema version") {
			t.Errorf("expected schema version in output, got %s", output.String())
		}
	})

	t.Run("status", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "setup", "status", "--json"); err != nil {
			t.Fatalf("setup status failed: %v", err)
		}

		var statuses []shared.MigrationStatus
		if err := json.Unmarshal(output.Bytes(), &statuses); err != nil {
			t.Fatalf("status output should be JSON: %v", err)
		}
		if len(statuses) == 0 {
			t.Fatal("expected at least one migration")
		}
		for _, s := range statuses {
			if !s.Applied {
				t.Errorf("migration %d should be applied", s.Version)
			}
		}
	})

	t.Run("rollback", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "setup", "rollback"); err != nil {
			t.Fatalf("setup rollback failed: %v", err)
		}
		if !strings.Contains(output.String(), "Rolled back migration") {
			t.Errorf("unexpected output %s", output.String())
		}
	})

	t.Run("config", func(t *testing.T) {
		fresh := filepath.Join(dir, "fresh.toml")
		r := NewRunner(RunnerOpts{ConfigPath: fresh, Logger: log.New(io.Discard), Output: &bytes.Buffer{}})

		if err := run(r, "setup", "config"); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, fresh)

		if err := run(r, "setup", "config"); err == nil {
			t.Error("writing the config twice should fail")
		}
	})
}

func TestClassifyCommand(t *testing.T) {
	dir := t.TempDir()

	t.Run("JSON", func(t *testing.T) {
		runner, output, lib := newTestRunner(t, tu.NewStubOracle("cat", 0.92))
		path := writeImage(t, dir, "cat.png", tu.PNG(t, 32, 32))

		if err := run(runner, "classify", "--json", "--pretty=false", path); err != nil {
			t.Fatalf("classify failed: %v", err)
		}

		var result struct {
			Total     int `json:"total"`
			Succeeded int `json:"succeeded"`
			Results   []struct {
				Path    string `json:"path"`
				Outcome struct {
					Classification struct {
						AlbumName string `json:"album_name"`
					} `json:"classification"`
				} `json:"outcome"`
			} `json:"results"`
		}
		if err := json.Unmarshal(output.Bytes(), &result); err != nil {
			t.Fatalf("classify output should be JSON: %v\n%s", err, output.String())
		}
		if result.Total != 1 || result.Succeeded != 1 || result.Results[0].Outcome.Classification.AlbumName != "cat" {
			t.Errorf("unexpected result %+v", result)
		}

		albums, _ := lib.ListAlbums()
		if len(albums) != 1 || albums[0].Name() != "cat" {
			t.Errorf("expected one album named cat, got %d", len(albums))
		}
	})

	t.Run("Partial Failure", func(t *testing.T) {
		runner, output, _ := newTestRunner(t, tu.NewStubOracle("cat", 0.3))
		good := writeImage(t, dir, "good.png", tu.PNG(t, 16, 16))
		bad := writeImage(t, dir, "bad.png", []byte("nope"))

		err := run(runner, "classify", "--workers", "2", good, bad)
		if err == nil || !strings.Contains(err.Error(), "1 of 2 photos failed") {
			t.Errorf("expected partial failure error, got %v", err)
		}

		out := output.String()
		if !strings.Contains(out, good) || !strings.Contains(out, bad) || !strings.Contains(out, "✗") {
			t.Errorf("expected per-file results, got %s", out)
		}
		if !strings.Contains(out, "low confidence") {
			t.Errorf("expected low confidence badge, got %s", out)
		}
	})

	t.Run("No Files", func(t *testing.T) {
		runner, _, _ := newTestRunner(t, tu.NewStubOracle("cat", 0.9))
		if err := run(runner, "classify"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestLibraryCommands(t *testing.T) {
	dir := t.TempDir()
	runner, output, lib := newTestRunner(t, tu.NewStubOracle("cat", 0.92))

	first := writeImage(t, dir, "a.png", tu.PNG(t, 32, 32))
	second := writeImage(t, dir, "b.png", tu.PNG(t, 32, 32))
	if err := run(runner, "classify", first, second); err != nil {
		t.Fatalf("classify failed: %v", err)
	}

	albums, err := lib.ListAlbums()
	if err != nil || len(albums) != 1 {
		t.Fatalf("expected one album: %v", err)
	}
	cat := albums[0]

	photos, err := lib.ListClassifications(cat.ID(), models.OrderByConfidence)
	if err != nil || len(photos) != 2 {
		t.Fatalf("expected two photos: %v", err)
	}

	t.Run("albums list", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "albums", "list"); err != nil {
			t.Fatalf("albums list failed: %v", err)
		}
		if !strings.Contains(output.String(), "cat") || !strings.Contains(output.String(), "2 photos") {
			t.Errorf("unexpected listing %s", output.String())
		}
	})

	t.Run("albums show", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "albums", "show", "--order", "timestamp", cat.ID()); err != nil {
			t.Fatalf("albums show failed: %v", err)
		}
		if !strings.Contains(output.String(), photos[0].ID()) || !strings.Contains(output.String(), "92%") {
			t.Errorf("unexpected album output %s", output.String())
		}

		if err := run(runner, "albums", "show", "--order", "size", cat.ID()); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := run(runner, "albums", "show"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("photos show", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "photos", "show", "--json", photos[0].ID()); err != nil {
			t.Fatalf("photos show failed: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal(output.Bytes(), &got); err != nil {
			t.Fatalf("expected JSON: %v", err)
		}
		if got["id"] != photos[0].ID() {
			t.Errorf("unexpected photo %v", got)
		}

		if err := run(runner, "photos", "show", shared.GenerateID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("photos similar", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "photos", "similar", "--max-distance", "0", photos[0].ID()); err != nil {
			t.Fatalf("photos similar failed: %v", err)
		}
		if !strings.Contains(output.String(), photos[1].ID()) {
			t.Errorf("expected identical photo to match, got %s", output.String())
		}
	})

	t.Run("photos image", func(t *testing.T) {
		path := filepath.Join(dir, "out.jpg")
		if err := run(runner, "photos", "image", "--output", path, photos[0].ID()); err != nil {
			t.Fatalf("photos image failed: %v", err)
		}
		tu.AssertFileExists(t, path)
	})

	t.Run("albums rename", func(t *testing.T) {
		if err := run(runner, "albums", "rename", cat.ID(), "feline"); err != nil {
			t.Fatalf("albums rename failed: %v", err)
		}
		c, err := lib.GetClassification(photos[0].ID())
		if err != nil || c.AlbumName() != "feline" {
			t.Errorf("expected photo to report feline, got %v", err)
		}
	})

	t.Run("albums export", func(t *testing.T) {
		out := filepath.Join(dir, "export")
		if err := run(runner, "albums", "export", "--format", "md", "--output", out, cat.ID()); err != nil {
			t.Fatalf("albums export failed: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(out, "README.md"))
		tu.AssertFileExists(t, filepath.Join(out, "metadata.json"))
	})

	t.Run("photos move", func(t *testing.T) {
		dog, err := lib.FindOrCreateAlbum("dog")
		if err != nil {
			t.Fatalf("failed to create album: %v", err)
		}
		if err := run(runner, "photos", "move", photos[1].ID(), dog.ID()); err != nil {
			t.Fatalf("photos move failed: %v", err)
		}
		c, _ := lib.GetClassification(photos[1].ID())
		if c.AlbumID() != dog.ID() {
			t.Errorf("expected photo in dog, got %s", c.AlbumName())
		}
	})

	t.Run("delete and purge", func(t *testing.T) {
		if err := run(runner, "photos", "delete", photos[0].ID()); err != nil {
			t.Fatalf("photos delete failed: %v", err)
		}
		if err := run(runner, "albums", "delete", cat.ID()); err != nil {
			t.Fatalf("albums delete failed: %v", err)
		}

		output.Reset()
		if err := run(runner, "purge", "--json", "--pretty=false"); err != nil {
			t.Fatalf("purge failed: %v", err)
		}
		var result repositories.PurgeResult
		if err := json.Unmarshal(output.Bytes(), &result); err != nil {
			t.Fatalf("expected JSON: %v", err)
		}
		if result.Albums != 1 || result.Classifications != 1 {
			t.Errorf("expected 1 album and 1 photo purged, got %+v", result)
		}
	})
}
