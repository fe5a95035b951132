package python

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

var wasmMagic = []byte("\x00asm")

// ErrNotWasm is returned when a downloaded file is not a WASM binary.
var ErrNotWasm = errors.New("downloaded file is not a WASM binary")

// Download fetches url into output unless output already exists. The file
// is written to a temp file in the same directory and renamed into place, so
// a failed or concurrent download never leaves a truncated runtime behind.
func Download(ctx context.Context, client *http.Client, url, output string) error {
	if _, err := os.Stat(output); err == nil {
		return nil
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("download python runtime: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download python runtime: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download python runtime: %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create runtime dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(output), ".python-*.wasm")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	head := make([]byte, len(wasmMagic))
	n, err := io.ReadFull(resp.Body, head)
	if err != nil || !bytes.Equal(head[:n], wasmMagic) {
		tmp.Close()
		return ErrNotWasm
	}
	if _, err := tmp.Write(head); err != nil {
		tmp.Close()
		return fmt.Errorf("write runtime: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write runtime: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write runtime: %w", err)
	}

	return os.Rename(tmpPath, output)
}
