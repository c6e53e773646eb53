// SPDX-License-Identifier: MIT

package config

import (
	"bufio"
	"os"
	"strings"
)

// LoadDotenv merges KEY=VALUE pairs from path into the process environment.
// Exported variables always win; quotes around values are stripped. A missing
// file is not an error. DISABLE_DOTENV=1 turns the whole mechanism off.
func LoadDotenv(path string) error {
	if getEnvBool("DISABLE_DOTENV", false) {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		v = strings.Trim(v, `"'`)
		if k == "" {
			continue
		}
		if _, exists := os.LookupEnv(k); !exists {
			_ = os.Setenv(k, v)
		}
	}
	return sc.Err()
}
