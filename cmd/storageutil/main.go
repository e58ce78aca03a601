// storageutil moves gateway documents (credentials, usage log) between
// storage backends, or dumps them to JSON for backup.
//
//	storageutil -mode copy -from file.yaml -to redis.yaml
//	storageutil -mode export -config file.yaml -file backup.json
//	storageutil -mode import -config redis.yaml -file backup.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"antigravity2api-go/internal/config"
	"antigravity2api-go/internal/storage"
)

func main() {
	mode := flag.String("mode", "", "operation mode: copy | export | import")
	fromPath := flag.String("from", "", "source config file (copy mode)")
	toPath := flag.String("to", "", "destination config file (copy mode)")
	configPath := flag.String("config", "", "config file (export/import modes)")
	filePath := flag.String("file", "", "JSON file for export/import (default: stdout/stdin)")
	timeout := flag.Duration("timeout", 30*time.Second, "operation timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var err error
	switch strings.ToLower(*mode) {
	case "copy":
		err = runCopy(ctx, *fromPath, *toPath)
	case "export":
		err = runExport(ctx, *configPath, *filePath)
	case "import":
		err = runImport(ctx, *configPath, *filePath)
	default:
		err = fmt.Errorf("missing or unknown -mode (expected copy|export|import)")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "storageutil:", err)
		os.Exit(1)
	}
}

func openBackend(ctx context.Context, configPath string) (storage.Backend, error) {
	if configPath == "" {
		return nil, fmt.Errorf("a config file path is required")
	}
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	backend, err := storage.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := backend.Initialize(ctx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("initialize %s backend: %w", cfg.StorageBackend, err)
	}
	return backend, nil
}

func runCopy(ctx context.Context, fromPath, toPath string) error {
	src, err := openBackend(ctx, fromPath)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer src.Close()
	dst, err := openBackend(ctx, toPath)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	defer dst.Close()

	keys, err := src.List(ctx)
	if err != nil {
		return fmt.Errorf("list source keys: %w", err)
	}
	for _, key := range keys {
		data, err := src.Load(ctx, key)
		if err != nil {
			return fmt.Errorf("load %s: %w", key, err)
		}
		if err := dst.Save(ctx, key, data); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
		fmt.Printf("copied %s (%d bytes)\n", key, len(data))
	}
	fmt.Printf("done, %d documents\n", len(keys))
	return nil
}

func runExport(ctx context.Context, configPath, filePath string) error {
	backend, err := openBackend(ctx, configPath)
	if err != nil {
		return err
	}
	defer backend.Close()

	keys, err := backend.List(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	dump := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		data, err := backend.Load(ctx, key)
		if err != nil {
			return fmt.Errorf("load %s: %w", key, err)
		}
		if !json.Valid(data) {
			data, _ = json.Marshal(string(data))
		}
		dump[key] = data
	}

	var w io.Writer = os.Stdout
	if filePath != "" {
		f, err := os.Create(filePath)
		if err != nil {
			return fmt.Errorf("open export file: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dump)
}

func runImport(ctx context.Context, configPath, filePath string) error {
	var r io.Reader = os.Stdin
	if filePath != "" {
		f, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		r = f
	}
	var dump map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return fmt.Errorf("parse import json: %w", err)
	}

	backend, err := openBackend(ctx, configPath)
	if err != nil {
		return err
	}
	defer backend.Close()

	for key, data := range dump {
		if err := backend.Save(ctx, key, data); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
		fmt.Printf("imported %s (%d bytes)\n", key, len(data))
	}
	return nil
}
