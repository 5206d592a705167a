package env

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from the appropriate .env file.
// A missing file is not an error: the process environment takes over.
func LoadEnv() error {
	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	envFile := fmt.Sprintf(".env.%s", env)
	envPath := filepath.Join("internal", "config", "env", envFile)

	if err := godotenv.Load(envPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error loading env file %s: %v", envPath, err)
	}

	return nil
}
