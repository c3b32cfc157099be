package config

import (
	"context"
	"os"
	"time"
)

// WatchOffice reloads office.yaml on change and calls onUpdate with the latest layout.
// It performs an initial load before entering the watch loop.
func WatchOffice(ctx context.Context, path string, interval time.Duration, onUpdate func(*OfficeConfig)) error {
	if path == "" {
		path = "configs/office.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := LoadOfficeConfig(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				cfg, err := LoadOfficeConfig(path)
				if err != nil {
					// Keep the previous layout until the file is fixed.
					continue
				}
				lastMod = info.ModTime()
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
