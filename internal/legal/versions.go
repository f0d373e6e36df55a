package legal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultVersion = "2026.1"

func DefaultVersions() Versions {
	return Versions{EULA: DefaultVersion, AUP: DefaultVersion, Privacy: DefaultVersion}
}

type versionsFile struct {
	Documents struct {
		EULA    string `yaml:"eula"`
		AUP     string `yaml:"aup"`
		Privacy string `yaml:"privacy"`
	} `yaml:"documents"`
}

// LoadVersions reads the required-version table. An empty path returns the
// defaults; keys missing from the file keep their default value.
func LoadVersions(path string) (Versions, error) {
	out := DefaultVersions()
	if strings.TrimSpace(path) == "" {
		return out, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read legal versions file: %w", err)
	}
	return parseVersions(data, out)
}

func parseVersions(data []byte, out Versions) (Versions, error) {
	var file versionsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		return nil, fmt.Errorf("failed to parse legal versions file: %w", err)
	}
	set := func(k DocumentKey, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	set(EULA, file.Documents.EULA)
	set(AUP, file.Documents.AUP)
	set(Privacy, file.Documents.Privacy)
	return out, nil
}
