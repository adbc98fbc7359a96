// Package config provides configuration structures and utilities for uiprobe.
// It defines the target application, the audio payload, the locators used to
// drive the page, browser driver settings, and report/history preferences.
package config
