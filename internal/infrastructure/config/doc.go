// Package config loads and validates the automation controller configuration.
//
// It manages:
//   - Loading configuration from YAML files
//   - Overriding with GRAYLOGIC_* environment variables
//   - Validation of every section, reporting all problems at once
//   - Default value handling
//
// Besides infrastructure (database, MQTT, API, InfluxDB, logging) the file
// declares the installation: sensors and actuators with their bridge
// addresses, and the automations configured per area.
//
//	areas:
//	  - name: kitchen
//	    automations:
//	      - flavor: conditional_on
//	        cooldown: 120
//
// Secrets (MQTT password, InfluxDB token) should come from the environment.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
