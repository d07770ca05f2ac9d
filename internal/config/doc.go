// Package config provides configuration types and loading for the gateway.
//
// Configuration is read once at startup from a YAML file. ${VAR} and
// ${VAR:-default} references are replaced with environment values before
// parsing, and "$$" yields a literal dollar sign. Unset fields are filled by
// ApplyDefaults and the result is checked by ValidateConfig; any error is
// fatal at startup.
//
//	cfg, err := config.LoadConfig("configs/gateway.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    return err
//	}
package config
