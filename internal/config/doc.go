// Package config provides loading and environment overlay for tailview
// configuration. It exposes a Default() baseline, file loading (JSON or
// YAML by extension) and a TAILVIEW_* environment overlay.
//
// Example:
//
//	cfg, err := config.Load("/etc/tailview.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config
