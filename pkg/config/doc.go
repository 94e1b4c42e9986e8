// Package config loads application configuration from environment
// variables with an optional YAML file as the base layer.
//
// Precedence, lowest to highest: built-in defaults, the YAML file named
// by ORGSEARCH_CONFIG_FILE, then ORGSEARCH_* environment variables.
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
