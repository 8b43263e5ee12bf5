// Package config loads the client configuration from a YAML file with
// defaults and OPENMAIL_* environment overrides.
//
//	cfg, err := config.Load(config.DefaultConfigPath())
//	if err != nil {
//	    return err
//	}
//	logrus.SetLevel(cfg.Level())
package config
