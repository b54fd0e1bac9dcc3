// Package config provides configuration management for the chat relay.
//
// Configuration is loaded from environment variables using the env package,
// after a .env file in the working directory has been applied with godotenv.
// All configuration values have sensible defaults for development use; only
// the Anthropic API key has none.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
