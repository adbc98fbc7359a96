// Package main provides the entry point for the uiprobe CLI.
//
// uiprobe drives a headless browser through the transcription web app:
// it uploads a sample audio file, waits for "Transcription Complete" and
// saves two full-page screenshots as evidence.
//
// Usage:
//
//	uiprobe verify
//	uiprobe verify --url http://localhost:5173 --audio sample.mp3
//	uiprobe verify --all
//
// See --help for all available options.
package main

// main is the entry point for uiprobe.
func main() {
	Execute()
}
