// Package events declares the payloads carried on the automation bus.
//
// Kind tree:
//
//	any
//	└── event
//	    ├── sensor
//	    │   └── sensor.motion            MotionChanged
//	    ├── environment
//	    │   ├── environment.daylight     DaylightChanged
//	    │   └── environment.temperature  OutdoorTemperatureChanged
//	    ├── timer
//	    │   └── timer.tick               Tick
//	    ├── actuator
//	    │   └── actuator.state           ActuatorStateChanged
//	    └── automation
//	        └── automation.state         AutomationStateChanged
//
// Subscribing to KindSensor receives every sensor payload; subscribing to
// KindEvent receives everything declared here.
package events
