// Package config loads environment-driven configuration structs.
//
// Structs describe their variables with caarlos0/env tags. The first call to
// Load reads a .env file from the working directory (if any) through
// godotenv, then parses the environment into the struct. Results are cached
// per type, so later calls for the same type return the same values.
//
//	var cfg purchase.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// Types implementing Validator are validated after parsing; a validation
// failure is returned wrapped in ErrInvalidConfig and is not cached.
package config
