// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: ncbi-api-key, semantic-scholar-api-key, core-api-key,
// unpaywall-email, openalex-email, crossref-email.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills client credentials from the secrets map. Values already set
// on the config (from the config file or environment) win.
func Apply(cfg *types.Config, secrets map[string]string) {
	set := func(dst *string, key string) {
		if *dst == "" {
			*dst = secrets[key]
		}
	}
	set(&cfg.Clients.NCBI.APIKey, "ncbi-api-key")
	set(&cfg.Clients.SemanticScholar.APIKey, "semantic-scholar-api-key")
	set(&cfg.Clients.CORE.APIKey, "core-api-key")
	set(&cfg.Clients.Unpaywall.Email, "unpaywall-email")
	set(&cfg.Clients.OpenAlex.Email, "openalex-email")
	set(&cfg.Clients.Crossref.Email, "crossref-email")
}
