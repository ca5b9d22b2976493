package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mikey/phishing-detector/internal/adapters/filter"
	"github.com/mikey/phishing-detector/internal/core"
)

// loadEmail reads one email file. .eml files are decoded as MIME messages;
// anything else uses the line format: sender, subject, then the body.
func loadEmail(path string) (*core.Email, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".eml") {
		email, err := filter.ParseMessage(bytes.NewReader(data), "")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return email, nil
	}
	return parseLineFormat(string(data)), nil
}

func parseLineFormat(content string) *core.Email {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	email := &core.Email{}
	if len(lines) > 0 {
		email.Sender = strings.TrimSpace(lines[0])
	}
	if len(lines) > 1 {
		email.Subject = strings.TrimSpace(lines[1])
	}
	if len(lines) > 2 {
		email.Body = strings.Join(lines[2:], "\n")
	}
	return email
}

// emailFiles lists the .txt and .eml files of dir in name order
func emailFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt", ".eml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
