// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config resolves the daemon configuration.
//
// Precedence is ENV > YAML file > defaults. The file is decoded strictly:
// unknown keys and trailing documents are errors. Durations are written in
// Go duration syntax ("3s", "500ms").
//
// ConfigHolder keeps the active configuration and reloads it when the file
// changes. Only the log level is applied live; everything else takes effect
// on restart.
package config
